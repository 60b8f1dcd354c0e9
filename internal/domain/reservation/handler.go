package reservation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reservations", h.List)
	api.POST("/reservations", h.Create)
	api.GET("/reservations/:id", h.Get)
	api.PUT("/reservations/:id", h.Update)
	api.PATCH("/reservations/:id/status", h.UpdateStatus)
	api.DELETE("/reservations/:id", h.Delete)
	api.GET("/reservations/:id/treatments", h.Treatments)
	api.POST("/reservations/:id/treatments", h.AddTreatments)
	api.DELETE("/reservations/:id/treatments", h.DeleteTreatments)
}

// List takes ?start=YYYY-MM-DD&end=YYYY-MM-DD. A missing end means the
// start day only.
func (h *Handler) List(c echo.Context) error {
	start, end := c.QueryParam("start"), c.QueryParam("end")
	if end == "" {
		end = start
	}
	list, err := h.svc.List(c.Request().Context(), start, end)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Create(c echo.Context) error {
	var r Reservation
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	var patch Reservation
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patch.ID = id
	r, err := h.svc.Update(c.Request().Context(), &patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Treatments(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	list, err := h.svc.Treatments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

type treatmentsRequest struct {
	Treatments []Treatment `json:"treatments"`
}

func (h *Handler) AddTreatments(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	var req treatmentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddTreatments(c.Request().Context(), id, req.Treatments); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteTreatments(c echo.Context) error {
	id, err := reservationID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatments(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func reservationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid reservation id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

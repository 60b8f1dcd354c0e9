package staff

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medical-staff", h.ListMedical)
	api.GET("/medical-staff/on-duty", h.OnDuty)
	api.POST("/medical-staff", h.CreateMedical)
	api.PUT("/medical-staff/:id", h.UpdateMedical)
	api.DELETE("/medical-staff/:id", h.DeleteMedical)

	api.GET("/staff", h.ListStaff)
	api.POST("/staff", h.CreateStaff)
	api.PUT("/staff/:id", h.UpdateStaff)
	api.DELETE("/staff/:id", h.DeleteStaff)
}

func (h *Handler) ListMedical(c echo.Context) error {
	list, err := h.svc.ListMedical(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) OnDuty(c echo.Context) error {
	list, err := h.svc.OnDuty(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateMedical(c echo.Context) error {
	var m MedicalStaff
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = 0
	if err := h.svc.CreateMedical(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMedical(c echo.Context) error {
	id, err := staffID(c)
	if err != nil {
		return err
	}
	var m MedicalStaff
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedical(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedical(c echo.Context) error {
	id, err := staffID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedical(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListStaff(c echo.Context) error {
	list, err := h.svc.ListStaff(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var s Staff
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = 0
	if err := h.svc.CreateStaff(c.Request().Context(), &s); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	id, err := staffID(c)
	if err != nil {
		return err
	}
	var s Staff
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = id
	if err := h.svc.UpdateStaff(c.Request().Context(), &s); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteStaff(c echo.Context) error {
	id, err := staffID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStaff(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func staffID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

package catalog

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
	api.GET("/treatment-items", h.List)
	api.POST("/treatment-items", h.Create)
	api.PUT("/treatment-items/order", h.Reorder)
	api.PUT("/treatment-items/:id", h.Update)
	api.DELETE("/treatment-items/:id", h.Delete)

	api.GET("/uncovered-categories", h.UncoveredCategories)
	api.PUT("/uncovered-categories", h.SaveUncoveredCategories)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it.ID = 0
	if err := h.svc.Create(c.Request().Context(), &it); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it.ID = id
	if err := h.svc.Update(c.Request().Context(), &it); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type reorderRequest struct {
	Items []Order `json:"items"`
}

func (h *Handler) Reorder(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Reorder(c.Request().Context(), req.Items); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UncoveredCategories(c echo.Context) error {
	list, err := h.svc.UncoveredCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

type uncoveredRequest struct {
	Categories []UncoveredCategory `json:"categories"`
}

func (h *Handler) SaveUncoveredCategories(c echo.Context) error {
	var req uncoveredRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Categories == nil {
		req.Categories = []UncoveredCategory{}
	}
	if err := h.svc.SaveUncoveredCategories(c.Request().Context(), req.Categories); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req.Categories)
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid treatment item id")
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

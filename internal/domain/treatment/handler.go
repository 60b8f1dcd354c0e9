package treatment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	board *Board
	admin RoomAdmin
}

// NewHandler serves board actions over HTTP. admin may be nil, in which case
// room creation and renaming are not routed.
func NewHandler(board *Board, admin RoomAdmin) *Handler {
	return &Handler{board: board, admin: admin}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:id", h.GetRoom)
	api.POST("/rooms/refresh", h.Refresh)
	if h.admin != nil {
		api.POST("/rooms", h.CreateRoom)
		api.PATCH("/rooms/:id", h.RenameRoom)
		api.DELETE("/rooms/:id", h.DeleteRoom)
	}

	api.POST("/rooms/:id/assign", h.AssignPatient)
	api.POST("/rooms/:id/finish", h.roomAction(h.board.FinishSession))
	api.POST("/rooms/:id/return", h.roomAction(h.board.ReturnToWaiting))
	api.POST("/rooms/:id/cleaning/start", h.roomAction(h.board.StartCleaning))
	api.POST("/rooms/:id/cleaning/finish", h.roomAction(h.board.FinishCleaning))
	api.POST("/rooms/:id/treatments", h.AddTreatment)

	api.POST("/rooms/:id/items/:item/start", h.itemAction(h.board.Start))
	api.POST("/rooms/:id/items/:item/pause", h.itemAction(h.board.Pause))
	api.POST("/rooms/:id/items/:item/complete", h.itemAction(h.board.Complete))
	api.POST("/rooms/:id/items/:item/reset", h.itemAction(h.board.Reset))
	api.POST("/rooms/:id/items/:item/adjust", h.AdjustDuration)
	api.POST("/rooms/:id/items/:item/move", h.MoveItem)
	api.DELETE("/rooms/:id/items/:item", h.itemAction(h.board.DeleteItem))
}

func (h *Handler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.View(h.board.now()))
}

func (h *Handler) GetRoom(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	for _, v := range h.board.View(h.board.now()) {
		if v.ID == id {
			return c.JSON(http.StatusOK, v)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "room not found")
}

func (h *Handler) Refresh(c echo.Context) error {
	h.board.RequestRefresh()
	return c.NoContent(http.StatusAccepted)
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	room, err := h.admin.CreateRoom(c.Request().Context(), req.Name)
	if err != nil {
		return httpError(err)
	}
	h.board.RequestRefresh()
	return c.JSON(http.StatusCreated, room)
}

func (h *Handler) RenameRoom(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.admin.RenameRoom(c.Request().Context(), id, req.Name); err != nil {
		return httpError(err)
	}
	h.board.RequestRefresh()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteRoom(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteRoom(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	h.board.RequestRefresh()
	return c.NoContent(http.StatusNoContent)
}

type assignRequest struct {
	PatientID int64 `json:"patient_id"`
}

func (h *Handler) AssignPatient(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	if err := h.board.AssignPatient(c.Request().Context(), id, req.PatientID); err != nil {
		return httpError(err)
	}
	return h.roomView(c, id)
}

func (h *Handler) AddTreatment(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	var t TreatmentTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it, err := h.board.AddTreatment(c.Request().Context(), id, t)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, it)
}

type adjustRequest struct {
	DeltaMinutes int `json:"delta_minutes"`
}

func (h *Handler) AdjustDuration(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	var req adjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.board.AdjustDuration(c.Request().Context(), id, c.Param("item"), req.DeltaMinutes); err != nil {
		return httpError(err)
	}
	return h.roomView(c, id)
}

type moveRequest struct {
	// Before is the item to insert in front of; empty moves to the end.
	Before string `json:"before"`
}

func (h *Handler) MoveItem(c echo.Context) error {
	id, err := roomID(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.board.Reorder(c.Request().Context(), id, c.Param("item"), req.Before); err != nil {
		return httpError(err)
	}
	return h.roomView(c, id)
}

func (h *Handler) roomAction(fn func(ctx context.Context, roomID int64) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := roomID(c)
		if err != nil {
			return err
		}
		if err := fn(c.Request().Context(), id); err != nil {
			return httpError(err)
		}
		return h.roomView(c, id)
	}
}

func (h *Handler) itemAction(fn func(ctx context.Context, roomID int64, itemID string) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := roomID(c)
		if err != nil {
			return err
		}
		if err := fn(c.Request().Context(), id, c.Param("item")); err != nil {
			return httpError(err)
		}
		return h.roomView(c, id)
	}
}

func (h *Handler) roomView(c echo.Context, id int64) error {
	now := h.board.now()
	room, ok := h.board.Room(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}
	return c.JSON(http.StatusOK, viewRooms([]Room{room}, now)[0])
}

func roomID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

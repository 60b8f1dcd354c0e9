// Package notification turns failures caught at an action boundary into
// operator notices: logged, kept in a bounded in-memory list, pushed to
// connected browsers and served over HTTP.
package notification

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Notice
// ---------------------------------------------------------------------------

// Level is the severity shown to the operator.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one operator-visible message.
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Op        string    `json:"op"`
	RoomID    int64     `json:"room_id,omitempty"`
	Message   string    `json:"message"`
	Terminal  string    `json:"terminal,omitempty"`
	Dismissed bool      `json:"dismissed"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher pushes a notice to live subscribers.
type Publisher interface {
	PublishNotice(n Notice)
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// DefaultCapacity is the number of notices kept when no capacity is given.
const DefaultCapacity = 200

// Manager records notices in arrival order and fans them out.
type Manager struct {
	logger    zerolog.Logger
	publisher Publisher
	terminal  string
	capacity  int
	now       func() time.Time

	mu      sync.RWMutex
	notices []Notice
}

// NewManager constructs a Manager. publisher may be nil.
func NewManager(logger zerolog.Logger, publisher Publisher, terminal string, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		logger:    logger.With().Str("component", "notices").Logger(),
		publisher: publisher,
		terminal:  terminal,
		capacity:  capacity,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify records n, logs it and publishes it. ID, terminal and timestamp are
// filled in when empty.
func (m *Manager) Notify(n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Level == "" {
		n.Level = LevelError
	}
	if n.Terminal == "" {
		n.Terminal = m.terminal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}

	m.mu.Lock()
	m.notices = append(m.notices, n)
	if over := len(m.notices) - m.capacity; over > 0 {
		m.notices = append([]Notice(nil), m.notices[over:]...)
	}
	m.mu.Unlock()

	m.logEvent(n).
		Str("notice_id", n.ID).
		Str("op", n.Op).
		Int64("room_id", n.RoomID).
		Msg(n.Message)

	if m.publisher != nil {
		m.publisher.PublishNotice(n)
	}
	return n
}

// Record stores a notice that was produced by another terminal. It is not
// republished.
func (m *Manager) Record(n Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notices {
		if existing.ID == n.ID {
			return
		}
	}
	m.notices = append(m.notices, n)
	if over := len(m.notices) - m.capacity; over > 0 {
		m.notices = append([]Notice(nil), m.notices[over:]...)
	}
}

// Errorf is shorthand for an error-level notice.
func (m *Manager) Errorf(op string, roomID int64, format string, args ...interface{}) Notice {
	return m.Notify(Notice{Level: LevelError, Op: op, RoomID: roomID, Message: fmt.Sprintf(format, args...)})
}

func (m *Manager) logEvent(n Notice) *zerolog.Event {
	switch n.Level {
	case LevelInfo:
		return m.logger.Info()
	case LevelWarning:
		return m.logger.Warn()
	default:
		return m.logger.Error()
	}
}

// Recent returns up to limit notices, newest first. Dismissed notices are
// skipped unless includeDismissed is set.
func (m *Manager) Recent(limit int, includeDismissed bool) []Notice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Notice, 0)
	for i := len(m.notices) - 1; i >= 0; i-- {
		n := m.notices[i]
		if n.Dismissed && !includeDismissed {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ErrNoticeNotFound is returned by Dismiss for unknown IDs.
var ErrNoticeNotFound = errors.New("notice not found")

// Dismiss hides a notice from the default listing.
func (m *Manager) Dismiss(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notices {
		if m.notices[i].ID == id {
			m.notices[i].Dismissed = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoticeNotFound, id)
}

// Stats returns counts of active notices grouped by level.
func (m *Manager) Stats() map[Level]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[Level]int)
	for _, n := range m.notices {
		if !n.Dismissed {
			stats[n.Level]++
		}
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes notices over HTTP via Echo.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new Handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers notice routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notices", h.HandleList)
	g.GET("/notices/stats", h.HandleStats)
	g.POST("/notices/:id/dismiss", h.HandleDismiss)
}

// HandleList handles GET /notices?limit=..&all=true.
func (h *Handler) HandleList(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}
	return c.JSON(http.StatusOK, h.manager.Recent(limit, c.QueryParam("all") == "true"))
}

// HandleStats handles GET /notices/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}

// HandleDismiss handles POST /notices/:id/dismiss.
func (h *Handler) HandleDismiss(c echo.Context) error {
	if err := h.manager.Dismiss(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Package realtime pushes the room board and operator notices to browsers
// over websockets. Clients subscribe to topics; the latest room view is
// retained and replayed to new subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/treatment"
	"github.com/clinicdesk/frontdesk/internal/platform/notification"
)

const (
	TopicRooms   = "rooms"
	TopicNotices = "notices"

	EventRoomsView = "rooms.view"
	EventNotice    = "notice"
)

// Event is one message sent to a websocket client.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Terminal  string          `json:"terminal,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one websocket connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient(topics ...string) *Client {
	return &Client{ID: uuid.NewString(), Topics: topics, Send: make(chan []byte, 64)}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	logger   zerolog.Logger
	terminal string
	now      func() time.Time

	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	all      map[*Client]struct{}
	retained map[string][]byte
	dropped  int64
}

func NewHub(logger zerolog.Logger, terminal string) *Hub {
	return &Hub{
		logger:   logger.With().Str("component", "realtime").Logger(),
		terminal: terminal,
		now:      func() time.Time { return time.Now().UTC() },
		clients:  make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
		retained: make(map[string][]byte),
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
	h.subscribeLocked(client, client.Topics)
}

// Unregister removes a client everywhere and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	fresh := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := h.clients[t][client]; !ok {
			fresh = append(fresh, t)
		}
	}
	h.subscribeLocked(client, fresh)
	client.Topics = append(client.Topics, fresh...)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
		if data, ok := h.retained[topic]; ok {
			h.sendLocked(client, data)
		}
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remove := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		remove[t] = struct{}{}
		h.removeLocked(t, client)
	}
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if _, rm := remove[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subs, ok := h.clients[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.clients, topic)
		}
	}
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends event to the topic's subscribers. With retain set the
// payload is also replayed to clients that subscribe later.
func (h *Hub) Broadcast(event Event, retain bool) {
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}
	if event.Terminal == "" {
		event.Terminal = h.terminal
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return
	}

	if retain {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.retained[event.Topic] = data
	} else {
		h.mu.RLock()
		defer h.mu.RUnlock()
	}
	for client := range h.clients[event.Topic] {
		h.sendLocked(client, data)
	}
}

// sendLocked never blocks; a client too slow to drain its buffer misses
// the message and catches up on the next one.
func (h *Hub) sendLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.dropped++
	}
}

// PublishRooms pushes the derived board to the rooms topic.
func (h *Hub) PublishRooms(views []treatment.RoomView) {
	data, err := json.Marshal(views)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal room view")
		return
	}
	h.Broadcast(Event{Type: EventRoomsView, Topic: TopicRooms, Data: data}, true)
}

// PublishNotice pushes an operator notice to the notices topic.
func (h *Hub) PublishNotice(n notification.Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal notice")
		return
	}
	h.Broadcast(Event{Type: EventNotice, Topic: TopicNotices, Terminal: n.Terminal, Data: data}, false)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler upgrades HTTP requests to websocket connections on the hub.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts connections whose Origin is in origins. An empty list
// or "*" allows any origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, anyOrigin := allowed["*"]
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || anyOrigin || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (wsh *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the request. The topics query parameter picks the
// initial subscriptions; both topics are used when it is absent.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	topics := []string{TopicRooms, TopicNotices}
	if q := c.QueryParam("topics"); q != "" {
		topics = strings.Split(q, ",")
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient()
	wsh.hub.Register(client)
	wsh.hub.Subscribe(client, topics)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown(_ context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.all))
	for c := range h.all {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.Unregister(c)
	}
}

package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is the JSON payload pushed to connected browsers when
// inventory state changes.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message with Type derived from entity and action,
// e.g. NewMessage("item", "created", ...) has Type "item_created".
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected WebSocket clients and fans messages out to them.
// Each client is scoped to the user that authenticated the connection,
// so pantry updates only reach that user's open tabs.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a client from the hub. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Broadcast sends a message to every connected client belonging to the
// given user. Slow clients have the message dropped rather than blocking
// the caller.
func (h *Hub) Broadcast(userID int64, msg Message) {
	h.fanOut(msg, func(c *Client) bool { return c.userID == userID })
}

// BroadcastAll sends a message to every connected client regardless of
// user. Used for instance-wide events such as backup status changes.
func (h *Hub) BroadcastAll(msg Message) {
	h.fanOut(msg, func(*Client) bool { return true })
}

func (h *Hub) fanOut(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal websocket message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow client, drop the message rather than block
			h.logger.Warn("websocket send buffer full, dropping message", "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per username
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user, replacing any older one
func (h *WSHub) Register(username string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[username]; ok {
		existing.conn.Close()
	}
	h.connections[username] = &wsClient{conn: conn}

	log.Info().Str("username", username).Msg("WebSocket connection registered")
}

// Unregister removes conn for a user. A newer connection registered for the
// same user is left alone.
func (h *WSHub) Unregister(username string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.connections[username]
	if !ok || client.conn != conn {
		return
	}
	client.conn.Close()
	delete(h.connections, username)
	log.Info().Str("username", username).Msg("WebSocket connection unregistered")
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(username string, message WSMessage) error {
	h.mu.RLock()
	client, ok := h.connections[username]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", username)
	}

	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(username, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[username]
	return ok
}

// Publish sends a group event to every connected recipient
func (h *WSHub) Publish(_ context.Context, recipients []string, event GroupEvent) {
	for _, username := range recipients {
		if !h.IsOnline(username) {
			continue
		}
		if err := h.SendToUser(username, WSMessage{Type: event.Type, Data: event}); err != nil {
			log.Error().
				Err(err).
				Str("username", username).
				Str("event", event.Type).
				Msg("Failed to deliver group event")
		}
	}
}

// SendGroupStatus tells a freshly connected user which group it belongs to
func (h *WSHub) SendGroupStatus(username, groupID string) error {
	data := map[string]interface{}{"has_group": groupID != ""}
	if groupID != "" {
		data["group_id"] = groupID
	}
	return h.SendToUser(username, WSMessage{Type: "group_status", Data: data})
}

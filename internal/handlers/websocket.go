package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ironup-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub          *services.WSHub
	userService  *services.UserService
	groupService *services.GroupService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	groupService *services.GroupService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		userService:  userService,
		groupService: groupService,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", "auth_error", http.StatusUnauthorized)
		return
	}

	username, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", "auth_error", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(username, conn)
	defer h.hub.Unregister(username, conn)

	groupID := ""
	status, err := h.groupService.GroupStatus(r.Context(), username)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		log.Error().Err(err).Str("username", username).Msg("Failed to load group for WebSocket session")
	} else if status != nil {
		groupID = status.GroupID
	}
	if err := h.hub.SendGroupStatus(username, groupID); err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to send group_status message")
	}

	log.Info().Str("username", username).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("username", username).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.sendErrorToUser(username, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.hub.SendToUser(username, services.WSMessage{Type: "pong"}); err != nil {
				log.Error().Err(err).Str("username", username).Msg("Failed to answer ping")
			}
		default:
			h.sendErrorToUser(username, "Unknown message type")
		}
	}
}

// sendErrorToUser sends an error message to a user
func (h *WebSocketHandler) sendErrorToUser(username, message string) {
	msg := services.WSMessage{
		Type:    "error",
		Message: message,
	}
	if err := h.hub.SendToUser(username, msg); err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to send error message")
	}
}

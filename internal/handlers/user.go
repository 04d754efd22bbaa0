package handlers

import (
	"net/http"

	"ironup-backend/internal/middleware"
	"ironup-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("username", req.Username).Msg("Registration rejected")
		writeServiceError(w, err)
		return
	}

	log.Info().Str("username", user.Username).Msg("User registered")
	respondJSON(w, http.StatusCreated, user)
}

// LoginRequest represents the request body for a login
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login handles POST /api/v1/sessions
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.userService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.Profile(r.Context(), middleware.GetUsername(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// DeleteMe handles DELETE /api/v1/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	if err := h.userService.DeleteAccount(r.Context(), username); err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to delete account")
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PushTokenRequest represents the request body for registering a device
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// SetPushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.userService.SetPushToken(r.Context(), middleware.GetUsername(r.Context()), req.PushToken); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

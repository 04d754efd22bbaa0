package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ironup-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeBody decodes a JSON request body, answering 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, "Invalid request body", "validation_error", http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps a service error kind to its HTTP status
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondError(w, err.Error(), "validation_error", http.StatusBadRequest)
	case errors.Is(err, services.ErrAlreadyRedeemed):
		respondError(w, err.Error(), "already_redeemed", http.StatusConflict)
	case errors.Is(err, services.ErrConflict):
		respondError(w, err.Error(), "conflict", http.StatusConflict)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, err.Error(), "not_found", http.StatusNotFound)
	case errors.Is(err, services.ErrWindowClosed):
		respondError(w, err.Error(), "window_closed", http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, err.Error(), "auth_error", http.StatusUnauthorized)
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		respondError(w, "Internal server error", "internal_error", http.StatusInternalServerError)
	}
}

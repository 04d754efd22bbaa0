package handlers

import (
	"net/http"

	"ironup-backend/internal/middleware"
	"ironup-backend/internal/services"
)

// CheckInHandler handles daily reward redemption
type CheckInHandler struct {
	rewardService *services.RewardService
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(rewardService *services.RewardService) *CheckInHandler {
	return &CheckInHandler{
		rewardService: rewardService,
	}
}

// CheckInRequest represents the request body for a check-in
type CheckInRequest struct {
	Date string `json:"date"`
}

// CheckInResponse is returned after a successful check-in
type CheckInResponse struct {
	Username string `json:"username"`
	Coin     int    `json:"coin"`
}

// CheckIn handles POST /api/v1/check-ins
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.GetUsername(ctx)

	var req CheckInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	coin, err := h.rewardService.CheckIn(ctx, username, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckInResponse{Username: username, Coin: coin})
}

package handlers

import (
	"net/http"

	"ironup-backend/internal/middleware"
	"ironup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GroupHandler handles group-related HTTP requests
type GroupHandler struct {
	groupService *services.GroupService
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// CreateGroup handles POST /api/v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.GetUsername(ctx)

	var req services.CreateGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	group, err := h.groupService.CreateGroup(ctx, username, req)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Failed to create group")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, group)
}

// JoinGroup handles POST /api/v1/groups/{group_id}/members
func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.GetUsername(ctx)
	groupID := chi.URLParam(r, "group_id")

	members, err := h.groupService.JoinGroup(ctx, groupID, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Str("group_id", groupID).Msg("Failed to join group")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"group_id": groupID,
		"members":  members,
	})
}

// LeaveGroup handles DELETE /api/v1/groups/current/members/me
func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.GetUsername(ctx)

	outcome, err := h.groupService.LeaveGroup(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Failed to leave group")
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// GroupStatus handles GET /api/v1/groups/current
func (h *GroupHandler) GroupStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.groupService.GroupStatus(ctx, middleware.GetUsername(ctx))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if status == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"group_id": nil,
			"message":  "No group found",
		})
		return
	}

	respondJSON(w, http.StatusOK, status)
}

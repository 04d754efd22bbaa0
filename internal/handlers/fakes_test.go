package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ironup-backend/internal/middleware"
	"ironup-backend/internal/models"
	"ironup-backend/internal/repository"
	"ironup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type userStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (s *userStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	s.users[user.Username] = *user
	return nil
}

func (s *userStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.History = append([]string{}, u.History...)
	return &u, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u.History = append([]string{}, u.History...)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; !ok {
		return repository.ErrNotFound
	}
	u := *user
	u.History = append([]string{}, user.History...)
	s.users[user.Username] = u
	return nil
}

func (s *userStore) UpdatePushToken(_ context.Context, username string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	s.users[username] = u
	return nil
}

func (s *userStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, username)
	return nil
}

type groupStore struct {
	mu     sync.Mutex
	groups map[string]models.Group
	issued map[string]bool
}

func (s *groupStore) Create(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued[group.ID] {
		return repository.ErrDuplicate
	}
	s.issued[group.ID] = true
	g := *group
	g.Members = append([]models.Member{}, group.Members...)
	s.groups[group.ID] = g
	return nil
}

func (s *groupStore) GetByID(_ context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	g.Members = append([]models.Member{}, g.Members...)
	return &g, nil
}

func (s *groupStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[id], nil
}

func (s *groupStore) AddMember(_ context.Context, groupID, username string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	g.Members = append([]models.Member{}, g.Members...)
	g.AddMember(username)
	s.groups[groupID] = g
	return append([]models.Member{}, g.Members...), nil
}

func (s *groupStore) RemoveMember(_ context.Context, groupID, username string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	g.Members = append([]models.Member{}, g.Members...)
	g.RemoveMember(username)
	if len(g.Members) == 0 {
		delete(s.groups, groupID)
		return []models.Member{}, nil
	}
	s.groups[groupID] = g
	return append([]models.Member{}, g.Members...), nil
}

// drop removes a group without touching its members' pointers
func (s *groupStore) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
}

// testServer wires real services over in-memory stores behind a chi router
type testServer struct {
	t       *testing.T
	users   *userStore
	groups  *groupStore
	userSvc *services.UserService
	hub     *services.WSHub
	router  chi.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := &userStore{users: make(map[string]models.User)}
	groups := &groupStore{groups: make(map[string]models.Group), issued: make(map[string]bool)}
	hub := services.NewWSHub()

	groupSvc := services.NewGroupService(groups, users, hub)
	rewardSvc := services.NewRewardService(users, groups, hub, 500)
	userSvc := services.NewUserService(users, groupSvc, "handler-secret", time.Hour)

	userHandler := NewUserHandler(userSvc)
	groupHandler := NewGroupHandler(groupSvc)
	checkInHandler := NewCheckInHandler(rewardSvc)
	wsHandler := NewWebSocketHandler(hub, userSvc, groupSvc)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", userHandler.Register)
		r.Post("/sessions", userHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userSvc))
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.DeleteMe)
			r.Put("/me/push-token", userHandler.SetPushToken)
			r.Post("/groups", groupHandler.CreateGroup)
			r.Get("/groups/current", groupHandler.GroupStatus)
			r.Delete("/groups/current/members/me", groupHandler.LeaveGroup)
			r.Post("/groups/{group_id}/members", groupHandler.JoinGroup)
			r.Post("/check-ins", checkInHandler.CheckIn)
		})
	})
	r.Get("/ws", wsHandler.HandleWebSocket)

	return &testServer{t: t, users: users, groups: groups, userSvc: userSvc, hub: hub, router: r}
}

// do performs a request with an optional bearer token and JSON body
func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signUp registers a user and returns a session token
func (s *testServer) signUp(username string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/users", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"secret"}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/sessions", "", `{"identifier":"`+username+`","password":"secret"}`)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var session services.Session
	decode(s.t, rec, &session)
	return session.Token
}

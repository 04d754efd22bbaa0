package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ironup-backend/internal/models"
	"ironup-backend/internal/repository"
)

// memUserStore is an in-memory UserStore that copies records in and out,
// like a document store would.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	// failUpdate makes Update fail for the given username
	failUpdate string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.CurrentGroup != nil {
		g := *u.CurrentGroup
		c.CurrentGroup = &g
	}
	if u.PushToken != nil {
		t := *u.PushToken
		c.PushToken = &t
	}
	c.History = append([]string{}, u.History...)
	return &c
}

func (s *memUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	s.users[user.Username] = copyUser(user)
	return nil
}

func (s *memUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", repository.ErrNotFound)
}

func (s *memUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Username == s.failUpdate {
		return fmt.Errorf("update refused")
	}
	if _, ok := s.users[user.Username]; !ok {
		return fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	s.users[user.Username] = copyUser(user)
	return nil
}

func (s *memUserStore) UpdatePushToken(_ context.Context, username string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	u.PushToken = pushToken
	return nil
}

func (s *memUserStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user not found: %w", repository.ErrNotFound)
	}
	delete(s.users, username)
	return nil
}

// put stores a user directly, bypassing the service
func (s *memUserStore) put(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = copyUser(u)
}

func (s *memUserStore) get(username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil
	}
	return copyUser(u)
}

// memGroupStore is an in-memory GroupStore
type memGroupStore struct {
	mu     sync.Mutex
	groups map[string]*models.Group
	// taken holds every id ever issued, including ids of deleted groups
	taken map[string]bool
}

func newMemGroupStore() *memGroupStore {
	return &memGroupStore{groups: make(map[string]*models.Group), taken: make(map[string]bool)}
}

func copyGroup(g *models.Group) *models.Group {
	c := *g
	c.Members = append([]models.Member{}, g.Members...)
	return &c
}

func (s *memGroupStore) Create(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken[group.ID] {
		return repository.ErrDuplicate
	}
	s.taken[group.ID] = true
	s.groups[group.ID] = copyGroup(group)
	return nil
}

func (s *memGroupStore) GetByID(_ context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group not found: %w", repository.ErrNotFound)
	}
	return copyGroup(g), nil
}

func (s *memGroupStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groups[id]
	return ok || s.taken[id], nil
}

func (s *memGroupStore) AddMember(_ context.Context, groupID, username string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group not found: %w", repository.ErrNotFound)
	}
	g.AddMember(username)
	return append([]models.Member{}, g.Members...), nil
}

func (s *memGroupStore) RemoveMember(_ context.Context, groupID, username string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group not found: %w", repository.ErrNotFound)
	}
	g.RemoveMember(username)
	if len(g.Members) == 0 {
		delete(s.groups, groupID)
	}
	return append([]models.Member{}, g.Members...), nil
}

// Delete drops a group behind the services' back, leaving member pointers stale
func (s *memGroupStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group not found: %w", repository.ErrNotFound)
	}
	delete(s.groups, id)
	return nil
}

func (s *memGroupStore) put(g *models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = copyGroup(g)
}

func (s *memGroupStore) get(id string) *models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil
	}
	return copyGroup(g)
}

type publishedEvent struct {
	recipients []string
	event      GroupEvent
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, recipients []string, event GroupEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{recipients: append([]string{}, recipients...), event: event})
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent{}, p.events...)
}

// fixedClock returns a clock frozen at the given local wall time
func fixedClock(y int, m time.Month, d, hour int) func() time.Time {
	t := time.Date(y, m, d, hour, 0, 0, 0, time.Local)
	return func() time.Time { return t }
}

// testEnv wires services over in-memory stores
type testEnv struct {
	users     *memUserStore
	groups    *memGroupStore
	events    *recordingPublisher
	groupSvc  *GroupService
	rewardSvc *RewardService
	userSvc   *UserService
}

func newTestEnv(now func() time.Time) *testEnv {
	users := newMemUserStore()
	groups := newMemGroupStore()
	events := &recordingPublisher{}

	groupSvc := NewGroupService(groups, users, events)
	groupSvc.now = now
	rewardSvc := NewRewardService(users, groups, events, DefaultDailyReward)
	rewardSvc.now = now
	userSvc := NewUserService(users, groupSvc, "test-secret", 7*24*time.Hour)
	userSvc.now = now

	return &testEnv{
		users:     users,
		groups:    groups,
		events:    events,
		groupSvc:  groupSvc,
		rewardSvc: rewardSvc,
		userSvc:   userSvc,
	}
}

func (e *testEnv) addUser(username string) {
	e.users.put(&models.User{
		Username: username,
		Email:    username + "@example.com",
		Avatar:   models.DefaultAvatar,
		History:  []string{},
	})
}

func validGroupRequest(days int) CreateGroupRequest {
	return CreateGroupRequest{
		Exercise:      models.ExercisePushUps,
		Days:          days,
		StartingPoint: 10,
		Increment:     2,
	}
}

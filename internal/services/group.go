package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ironup-backend/internal/challenge"
	"ironup-backend/internal/metrics"
	"ironup-backend/internal/models"
	"ironup-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	groupIDLength      = 12
	groupIDMaxAttempts = 10
	statusFanOut       = 8
)

// GroupService maintains challenge group membership and the status view
type GroupService struct {
	groupRepo GroupStore
	userRepo  UserStore
	events    EventPublisher
	now       func() time.Time
	newID     func() string
}

// NewGroupService creates a new group service. A nil publisher disables events.
func NewGroupService(groupRepo GroupStore, userRepo UserStore, events EventPublisher) *GroupService {
	if events == nil {
		events = noopPublisher{}
	}
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		events:    events,
		now:       time.Now,
		newID:     randomGroupID,
	}
}

func randomGroupID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:groupIDLength]
}

// CreateGroupRequest represents a request to start a challenge
type CreateGroupRequest struct {
	Exercise      models.Exercise `json:"exercise"`
	Days          int             `json:"days"`
	StartingPoint int             `json:"starting_point"`
	Increment     int             `json:"increment"`
}

func (r CreateGroupRequest) validate() error {
	if r.Exercise == "" || r.Days == 0 || r.StartingPoint == 0 || r.Increment == 0 {
		return validationError("all fields are required")
	}
	if !r.Exercise.Valid() {
		return validationError("exercise %q is not supported", r.Exercise)
	}
	if r.Days < models.MinChallengeDays || r.Days > models.MaxChallengeDays {
		return validationError("days must be between %d and %d", models.MinChallengeDays, models.MaxChallengeDays)
	}
	if r.StartingPoint < 0 || r.Increment < 0 {
		return validationError("starting point and increment must be positive")
	}
	return nil
}

// CreateGroup starts a new group today with username as its only member
func (s *GroupService) CreateGroup(ctx context.Context, username string, req CreateGroupRequest) (*models.Group, error) {
	if username == "" {
		return nil, validationError("username is required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.InGroup() {
		return nil, conflictError("you are already in a group, leave your current group before creating a new one")
	}

	groupID, err := s.generateGroupID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	group := &models.Group{
		ID:            groupID,
		CreatedAt:     challenge.FormatDate(challenge.Today(now)),
		Exercise:      req.Exercise,
		Days:          req.Days,
		StartingPoint: req.StartingPoint,
		Increment:     req.Increment,
		InsertedAt:    now,
	}
	group.AddMember(username)

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	user.CurrentGroup = &groupID
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to assign group to user: %w", err)
	}

	metrics.GroupsCreated.Inc()
	log.Info().
		Str("username", username).
		Str("group_id", groupID).
		Str("exercise", string(group.Exercise)).
		Int("days", group.Days).
		Msg("Group created")

	return group, nil
}

// generateGroupID allocates an unused 12-character group id
func (s *GroupService) generateGroupID(ctx context.Context) (string, error) {
	for i := 0; i < groupIDMaxAttempts; i++ {
		id := s.newID()
		exists, err := s.groupRepo.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check group id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique group id after %d attempts", groupIDMaxAttempts)
}

// JoinGroup adds username to the group and returns the updated roster
func (s *GroupService) JoinGroup(ctx context.Context, groupID, username string) ([]string, error) {
	if groupID == "" || username == "" {
		return nil, validationError("group id and username are required")
	}

	user, err := s.getUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.InGroup() {
		return nil, conflictError("you are already in a group, leave your current group before joining another")
	}

	members, err := s.groupRepo.AddMember(ctx, groupID, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("group not found")
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	user.CurrentGroup = &groupID
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to assign group to user: %w", err)
	}

	roster := models.Usernames(members)
	metrics.MembershipChanges.WithLabelValues("joined").Inc()
	log.Info().Str("username", username).Str("group_id", groupID).Int("members", len(roster)).Msg("Joined group")

	s.events.Publish(ctx, others(roster, username), GroupEvent{
		Type:    EventMemberJoined,
		GroupID: groupID,
		Actor:   username,
		Members: roster,
	})

	return roster, nil
}

// LeaveOutcome tells the caller what LeaveGroup did
type LeaveOutcome struct {
	GroupID               string `json:"group_id"`
	Left                  bool   `json:"left"`
	GroupDeleted          bool   `json:"group_deleted"`
	StaleReferenceCleared bool   `json:"stale_reference_cleared"`
}

// LeaveGroup removes username from its group and resets its coins and
// history. The store deletes the group when nobody is left.
func (s *GroupService) LeaveGroup(ctx context.Context, username string) (*LeaveOutcome, error) {
	if username == "" {
		return nil, validationError("username is required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, conflictError("you are not in any group")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.InGroup() {
		return nil, conflictError("you are not in any group")
	}
	groupID := *user.CurrentGroup

	remaining, err := s.groupRepo.RemoveMember(ctx, groupID, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to remove member: %w", err)
		}
		if err := clearStaleReference(ctx, s.userRepo, user); err != nil {
			return nil, err
		}
		return &LeaveOutcome{GroupID: groupID, StaleReferenceCleared: true}, nil
	}

	outcome := &LeaveOutcome{GroupID: groupID, Left: true, GroupDeleted: len(remaining) == 0}
	if outcome.GroupDeleted {
		metrics.GroupsDeleted.Inc()
	}

	resetEconomy(user)
	user.CurrentGroup = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to reset user after leaving: %w", err)
	}

	metrics.MembershipChanges.WithLabelValues("left").Inc()
	log.Info().
		Str("username", username).
		Str("group_id", groupID).
		Bool("group_deleted", outcome.GroupDeleted).
		Msg("Left group")

	if !outcome.GroupDeleted {
		roster := models.Usernames(remaining)
		s.events.Publish(ctx, roster, GroupEvent{
			Type:    EventMemberLeft,
			GroupID: groupID,
			Actor:   username,
			Members: roster,
		})
	}

	return outcome, nil
}

// GroupStatus assembles the view of the caller's current group. It returns
// nil without error when the user has no group. A reference to a group that
// no longer exists is cleared and reported as not found.
func (s *GroupService) GroupStatus(ctx context.Context, username string) (*models.GroupStatus, error) {
	user, err := s.getUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.InGroup() {
		return nil, nil
	}

	group, err := s.groupRepo.GetByID(ctx, *user.CurrentGroup)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get group: %w", err)
		}
		if err := clearStaleReference(ctx, s.userRepo, user); err != nil {
			return nil, err
		}
		return nil, notFoundError("the group no longer exists")
	}

	window, err := challenge.NewWindow(group.CreatedAt, group.Days)
	if err != nil {
		log.Error().Err(err).Str("group_id", group.ID).Msg("Group has an invalid challenge window")
		return nil, validationError("group %s has an invalid challenge window", group.ID)
	}

	members, err := s.memberStatuses(ctx, group)
	if err != nil {
		return nil, err
	}

	return &models.GroupStatus{
		GroupID:       group.ID,
		Members:       members,
		Exercise:      group.Exercise,
		DaysLeft:      window.DaysRemaining(s.now()),
		StartingPoint: group.StartingPoint,
		Increment:     group.Increment,
		Totals:        group.Days,
		History:       historyOrEmpty(user.History),
	}, nil
}

// memberStatuses reads every member concurrently, keeping roster order.
// Members whose user record is gone are skipped.
func (s *GroupService) memberStatuses(ctx context.Context, group *models.Group) ([]models.MemberStatus, error) {
	roster := group.Roster()
	found := make([]*models.MemberStatus, len(roster))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusFanOut)
	for i, name := range roster {
		g.Go(func() error {
			member, err := s.userRepo.GetByUsername(gctx, name)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					log.Warn().Str("group_id", group.ID).Str("username", name).Msg("Roster entry has no user")
					return nil
				}
				return fmt.Errorf("failed to get member %s: %w", name, err)
			}
			found[i] = &models.MemberStatus{
				Username: member.Username,
				Avatar:   member.Avatar,
				Coin:     member.Coin,
				History:  historyOrEmpty(member.History),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	members := make([]models.MemberStatus, 0, len(found))
	for _, m := range found {
		if m != nil {
			members = append(members, *m)
		}
	}
	return members, nil
}

func (s *GroupService) getUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func historyOrEmpty(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ironup-backend/internal/challenge"
	"ironup-backend/internal/metrics"
	"ironup-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// DefaultDailyReward is the number of coins granted per check-in
const DefaultDailyReward = 500

// RewardService grants the daily check-in reward
type RewardService struct {
	userRepo  UserStore
	groupRepo GroupStore
	events    EventPublisher
	reward    int
	now       func() time.Time
}

// NewRewardService creates a new reward service. A non-positive reward falls
// back to DefaultDailyReward and a nil publisher disables events.
func NewRewardService(userRepo UserStore, groupRepo GroupStore, events EventPublisher, reward int) *RewardService {
	if reward <= 0 {
		reward = DefaultDailyReward
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &RewardService{
		userRepo:  userRepo,
		groupRepo: groupRepo,
		events:    events,
		reward:    reward,
		now:       time.Now,
	}
}

// CheckIn records that username trained on date (DD/MM/YYYY) and returns the
// new coin balance. Each date string is rewarded at most once.
func (s *RewardService) CheckIn(ctx context.Context, username, date string) (int, error) {
	date = strings.TrimSpace(date)
	if username == "" || date == "" {
		return 0, validationError("username and date are required")
	}

	balance, err := s.checkIn(ctx, username, date)
	metrics.CheckIns.WithLabelValues(checkInResult(err)).Inc()
	return balance, err
}

func (s *RewardService) checkIn(ctx context.Context, username, date string) (int, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, notFoundError("user not found")
		}
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.InGroup() {
		return 0, conflictError("user is not in any group")
	}

	group, err := s.groupRepo.GetByID(ctx, *user.CurrentGroup)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("failed to get group: %w", err)
		}
		if err := clearStaleReference(ctx, s.userRepo, user); err != nil {
			return 0, err
		}
		return 0, notFoundError("the group no longer exists")
	}

	window, err := challenge.NewWindow(group.CreatedAt, group.Days)
	if err != nil {
		log.Error().Err(err).Str("group_id", group.ID).Msg("Group has an invalid challenge window")
		return 0, validationError("invalid group start date")
	}

	provided, err := challenge.ParseDate(date)
	if err != nil {
		return 0, validationError("invalid provided date %q, expected DD/MM/YYYY", date)
	}

	if !window.Contains(provided) {
		return 0, fmt.Errorf("%w: challenge period is over, the last eligible day was %s",
			ErrWindowClosed, challenge.FormatDate(window.EndInclusive()))
	}
	if user.HasRedeemed(date) {
		return 0, ErrAlreadyRedeemed
	}

	user.History = append(user.History, date)
	user.Coin += s.reward
	if err := s.userRepo.Update(ctx, user); err != nil {
		return 0, fmt.Errorf("failed to save check-in: %w", err)
	}

	metrics.CoinsAwarded.Add(float64(s.reward))
	log.Info().
		Str("username", username).
		Str("group_id", group.ID).
		Str("date", date).
		Int("coin", user.Coin).
		Msg("Check-in rewarded")

	s.events.Publish(ctx, others(group.Roster(), username), GroupEvent{
		Type:    EventCheckedIn,
		GroupID: group.ID,
		Actor:   username,
		Date:    date,
		Coin:    user.Coin,
	})

	return user.Coin, nil
}

func checkInResult(err error) string {
	switch {
	case err == nil:
		return "rewarded"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}

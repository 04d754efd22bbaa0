package services

import (
	"context"
	"fmt"

	"ironup-backend/internal/metrics"
	"ironup-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// UserStore is the persistence the services need for users.
// *repository.UserRepository satisfies it.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePushToken(ctx context.Context, username string, pushToken *string) error
	Delete(ctx context.Context, username string) error
}

// GroupStore is the persistence the services need for groups.
// *repository.GroupRepository satisfies it. AddMember and RemoveMember change
// one roster entry atomically and return the resulting roster; RemoveMember
// deletes the group when it leaves the roster empty.
type GroupStore interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	Exists(ctx context.Context, id string) (bool, error)
	AddMember(ctx context.Context, groupID, username string) ([]models.Member, error)
	RemoveMember(ctx context.Context, groupID, username string) ([]models.Member, error)
}

// clearStaleReference drops a user's pointer to a group that no longer exists
func clearStaleReference(ctx context.Context, users UserStore, user *models.User) error {
	stale := *user.CurrentGroup
	user.CurrentGroup = nil
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to clear stale group reference: %w", err)
	}
	metrics.StaleReferences.Inc()
	log.Info().Str("username", user.Username).Str("group_id", stale).Msg("Cleared stale group reference")
	return nil
}

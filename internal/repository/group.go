package repository

import (
	"context"
	"errors"
	"fmt"

	"ironup-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GroupRepository handles database operations for challenge groups.
// Roster changes lock the group row, so concurrent joins and leaves apply one
// at a time.
type GroupRepository struct {
	db *pgxpool.Pool
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create records the group id as issued and inserts the group with its roster
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO group_ids (group_id) VALUES ($1)`, group.ID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("group id already issued: %w", ErrDuplicate)
			}
			return fmt.Errorf("failed to issue group id: %w", err)
		}

		query := `
			INSERT INTO groups (group_id, created_at, exercise, days, starting_point, increment, inserted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.Exec(ctx, query,
			group.ID, group.CreatedAt, string(group.Exercise), group.Days,
			group.StartingPoint, group.Increment, group.InsertedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("failed to create group: %w", ErrDuplicate)
			}
			return fmt.Errorf("failed to create group: %w", err)
		}
		return writeMembers(ctx, tx, group)
	})
}

// GetByID retrieves a group and its roster in join order
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := `
		SELECT group_id, created_at, exercise, days, starting_point, increment, inserted_at
		FROM groups
		WHERE group_id = $1
	`
	var group models.Group
	var exercise string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.CreatedAt, &exercise, &group.Days,
		&group.StartingPoint, &group.Increment, &group.InsertedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("group not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Exercise = models.Exercise(exercise)

	group.Members, err = listMembers(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Exists checks if a group id was ever issued, including ids of deleted groups
func (r *GroupRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM group_ids WHERE group_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}
	return exists, nil
}

// AddMember appends username to the roster, or resets its counter when it is
// already there, and returns the roster after the change.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, username string) ([]models.Member, error) {
	var members []models.Member
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, username, counter, position)
			SELECT $1, $2, 0, COALESCE(MAX(position) + 1, 0)
			FROM group_members
			WHERE group_id = $1
			ON CONFLICT (group_id, username) DO UPDATE SET counter = 0
		`, groupID, username)
		if err != nil {
			return fmt.Errorf("failed to add group member: %w", err)
		}

		members, err = listMembers(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember takes username off the roster and returns who is left. The
// group itself is deleted in the same transaction once nobody remains.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, username string) ([]models.Member, error) {
	var remaining []models.Member
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND username = $2`, groupID, username)
		if err != nil {
			return fmt.Errorf("failed to remove group member: %w", err)
		}

		remaining, err = listMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE group_id = $1`, groupID); err != nil {
				return fmt.Errorf("failed to delete empty group: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

func lockGroup(ctx context.Context, tx pgx.Tx, groupID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT group_id FROM groups WHERE group_id = $1 FOR UPDATE`, groupID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("group not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to lock group: %w", err)
	}
	return nil
}

func listMembers(ctx context.Context, q querier, groupID string) ([]models.Member, error) {
	rows, err := q.Query(ctx, `
		SELECT username, counter
		FROM group_members
		WHERE group_id = $1
		ORDER BY position
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.Username, &m.Counter); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group members: %w", err)
	}
	return members, nil
}

func writeMembers(ctx context.Context, tx pgx.Tx, group *models.Group) error {
	batch := &pgx.Batch{}
	for i, m := range group.Members {
		batch.Queue(`
			INSERT INTO group_members (group_id, username, counter, position)
			VALUES ($1, $2, $3, $4)
		`, group.ID, m.Username, m.Counter, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write group members: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/entity"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// SessionRepository writes the sessions embedded in a user row. Reads go through
// UserRepository.FindByID; callers do whole-collection read-modify-write.
type SessionRepository interface {
	// ReplaceSessions overwrites the collection and reports whether the user exists.
	ReplaceSessions(ctx context.Context, userID uuid.UUID, sessions entity.SessionList) (bool, error)
	// DeleteInactiveBefore removes, across all users, sessions last active before cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) ReplaceSessions(ctx context.Context, userID uuid.UUID, sessions entity.SessionList) (bool, error) {
	if sessions == nil {
		sessions = entity.SessionList{}
	}
	result := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("sessions", datatypes.JSONSlice[entity.Session](sessions))
	if result.Error != nil {
		return false, fmt.Errorf("replace sessions: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *sessionRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	var users []entity.User
	result := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Select("id", "sessions").
		Where("jsonb_array_length(sessions) > 0").
		FindInBatches(&users, sweepBatchSize, func(tx *gorm.DB, _ int) error {
			n, err := pruneBatch(users, cutoff, func(userID uuid.UUID, kept entity.SessionList) error {
				_, err := r.ReplaceSessions(ctx, userID, kept)
				return err
			})
			removed += n
			return err
		})
	if result.Error != nil {
		return removed, fmt.Errorf("sweep sessions: %w", result.Error)
	}
	return removed, nil
}

// pruneBatch drops stale sessions from each user and writes back only the users
// that lost at least one session.
func pruneBatch(users []entity.User, cutoff time.Time, write func(uuid.UUID, entity.SessionList) error) (int, error) {
	removed := 0
	for i := range users {
		kept, n := users[i].SessionList().PruneInactiveBefore(cutoff)
		if n == 0 {
			continue
		}
		if err := write(users[i].ID, kept); err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

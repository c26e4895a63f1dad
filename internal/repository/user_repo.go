package repository

import (
	"context"
	"errors"

	"fintrack/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdateReset(ctx context.Context, user *entity.User) error
	UpdatePassword(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	if user.Sessions == nil {
		user.Sessions = []entity.Session{}
	}
	if user.ResetState == "" {
		user.ResetState = entity.ResetStateNone
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// UpdateReset writes only the password-reset columns so a concurrent session
// write is not clobbered.
func (r *userRepository) UpdateReset(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", user.ID).
		Select(
			"reset_otp_hash",
			"reset_otp_expires_at",
			"reset_otp_attempts",
			"reset_state",
			"reset_window_start",
			"reset_request_count",
		).
		Updates(user).Error
}

func (r *userRepository) UpdatePassword(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", user.ID).
		Select(
			"password_hash",
			"reset_otp_hash",
			"reset_otp_expires_at",
			"reset_otp_attempts",
			"reset_state",
		).
		Updates(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.User{})
	return result.RowsAffected > 0, result.Error
}

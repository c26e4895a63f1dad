package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ResetState string

const (
	ResetStateNone      ResetState = "none"
	ResetStateRequested ResetState = "requested"
	ResetStateVerified  ResetState = "verified"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"type:varchar(100);not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`

	ResetOTPHash      *string `gorm:"type:text"`
	ResetOTPExpiresAt *time.Time
	ResetOTPAttempts  int        `gorm:"default:0;not null"`
	ResetState        ResetState `gorm:"type:varchar(16);default:'none';not null"`
	ResetWindowStart  *time.Time
	ResetRequestCount int `gorm:"default:0;not null"`

	// Sessions is the embedded device collection, persisted as a single jsonb document.
	Sessions datatypes.JSONSlice[Session] `gorm:"type:jsonb;default:'[]';not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionList returns a copy of the embedded sessions.
func (u *User) SessionList() SessionList {
	out := make(SessionList, len(u.Sessions))
	copy(out, u.Sessions)
	return out
}

func (u *User) ClearReset() {
	u.ResetOTPHash = nil
	u.ResetOTPExpiresAt = nil
	u.ResetOTPAttempts = 0
	u.ResetState = ResetStateNone
}

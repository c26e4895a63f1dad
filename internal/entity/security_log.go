package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess       SecurityAction = "login_success"
	LoginFailed        SecurityAction = "login_failed"
	Registered         SecurityAction = "registered"
	Logout             SecurityAction = "logout"
	SessionTerminated  SecurityAction = "session_terminated"
	SessionsTerminated SecurityAction = "other_sessions_terminated"
	ResetRequested     SecurityAction = "password_reset_requested"
	ResetVerified      SecurityAction = "password_reset_verified"
	Reset              SecurityAction = "password_reset"
	AccountDeleted     SecurityAction = "account_deleted"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// No foreign key: the log outlives account deletion.
	UserID *uuid.UUID `gorm:"type:uuid;index"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(40);not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

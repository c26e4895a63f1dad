package service

import (
	"context"
	"time"

	"fintrack/internal/device"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	OTPTTL          time.Duration
	OTPMaxAttempts  int
	ResetRateWindow time.Duration
	ResetRateLimit  int
}

type SessionConfig struct {
	// ActiveWindow is how recent LastActive must be for a session to count as active.
	ActiveWindow time.Duration
	// Retention is how long an idle session survives the sweep.
	Retention time.Duration
}

type EmailSender interface {
	SendPasswordResetOTP(ctx context.Context, email string, code string, expiresIn time.Duration) error
	SendWelcomeEmail(ctx context.Context, email string, username string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type OTPGenerator interface {
	Generate(now time.Time) (string, error)
}

type DeviceIdentifier interface {
	Identify(ctx context.Context, info device.RequestInfo) (device.Fingerprint, error)
}

// TaskRunner runs fire-and-forget work off the request path.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

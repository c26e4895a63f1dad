package service

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserNotFound           = errors.New("user not found")

	// Auth gate rejections.
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrSessionTerminated = errors.New("session terminated")
	// ErrSessionUnverifiable means the session check itself failed; the gate fails closed.
	ErrSessionUnverifiable = errors.New("session could not be verified")

	// Password reset.
	ErrInvalidOTP          = errors.New("invalid otp")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrResetNotRequested   = errors.New("password reset not requested")
	ErrResetNotVerified    = errors.New("password reset not verified")
)

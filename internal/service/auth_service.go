package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fintrack/internal/device"
	"fintrack/internal/entity"
	"fintrack/internal/repository"
	"fintrack/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// dummyPasswordHash is used only when the configured hasher cannot produce one.
const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const (
	DefaultOTPTTL          = 10 * time.Minute
	DefaultOTPMaxAttempts  = 5
	DefaultResetRateWindow = 10 * time.Minute
	DefaultResetRateLimit  = 3
)

type AuthService struct {
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	sessions     *SessionService
	tokens       *TokenService
	devices      DeviceIdentifier

	emailSender  EmailSender
	passwordHash PasswordHasher
	// dummyHash is compared against on unknown emails; it shares the hasher's cost.
	dummyHash string
	otp       OTPGenerator
	tasks     TaskRunner
	clock     Clock
	config    AuthConfig
	logger    logrus.FieldLogger
}

func NewAuthService(
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	sessions *SessionService,
	tokens *TokenService,
	devices DeviceIdentifier,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	otp OTPGenerator,
	tasks TaskRunner,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if config.OTPTTL <= 0 {
		config.OTPTTL = DefaultOTPTTL
	}
	if config.OTPMaxAttempts <= 0 {
		config.OTPMaxAttempts = DefaultOTPMaxAttempts
	}
	if config.ResetRateWindow <= 0 {
		config.ResetRateWindow = DefaultResetRateWindow
	}
	if config.ResetRateLimit <= 0 {
		config.ResetRateLimit = DefaultResetRateLimit
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	dummyHash := dummyPasswordHash
	if passwordHash != nil {
		if hash, err := passwordHash.Hash(uuid.NewString()); err == nil {
			dummyHash = hash
		} else {
			logger.WithError(err).Warn("dummy password hash fell back to default cost")
		}
	}
	return &AuthService{
		users:        users,
		securityLogs: securityLogs,
		sessions:     sessions,
		tokens:       tokens,
		devices:      devices,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		dummyHash:    dummyHash,
		otp:          otp,
		tasks:        tasks,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput, info device.RequestInfo) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		ResetState:   entity.ResetStateNone,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}

	result, err := s.establishSession(ctx, user, info)
	if err != nil {
		return nil, err
	}

	if s.emailSender != nil && s.tasks != nil {
		s.tasks.Go("email.welcome", func(ctx context.Context) error {
			return s.emailSender.SendWelcomeEmail(ctx, user.Email, user.Username)
		})
	}
	s.logSecurity(ctx, &user.ID, result.Session.Location.IP, entity.Registered, nil)
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput, info device.RequestInfo) (*AuthResult, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	ip := device.ClientIP(info)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = s.passwordHash.Verify(s.dummyHash, input.Password)
		s.logSecurity(ctx, nil, ip, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(user.PasswordHash, input.Password) {
		s.logSecurity(ctx, &user.ID, ip, entity.LoginFailed, map[string]any{"email": email})
		return nil, ErrInvalidCredentials
	}

	result, err := s.establishSession(ctx, user, info)
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &user.ID, ip, entity.LoginSuccess, map[string]any{"device_id": result.Session.DeviceID})
	return result, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, deviceID string) error {
	if _, err := s.sessions.Remove(ctx, userID, deviceID); err != nil {
		return err
	}
	s.logSecurity(ctx, &userID, "", entity.Logout, map[string]any{"device_id": deviceID})
	return nil
}

// TerminateSession signs one device out. It reports whether the user exists.
func (s *AuthService) TerminateSession(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	found, err := s.sessions.Remove(ctx, userID, deviceID)
	if err != nil || !found {
		return found, err
	}
	s.logSecurity(ctx, &userID, "", entity.SessionTerminated, map[string]any{"device_id": deviceID})
	return true, nil
}

// TerminateOtherSessions signs out every device except keepDeviceID.
func (s *AuthService) TerminateOtherSessions(ctx context.Context, userID uuid.UUID, keepDeviceID string) (bool, error) {
	found, err := s.sessions.RemoveOthers(ctx, userID, keepDeviceID)
	if err != nil || !found {
		return found, err
	}
	s.logSecurity(ctx, &userID, "", entity.SessionsTerminated, map[string]any{"kept_device_id": keepDeviceID})
	return true, nil
}

// ForgotPassword emails a one-time code. Unknown addresses and rate-limited
// users succeed silently so callers cannot tell which emails are registered.
// The code is stored before the email is sent, so a caller that gives up
// waiting may still find a valid code in place.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	now := s.clock.Now()
	if user.ResetWindowStart == nil || now.Sub(*user.ResetWindowStart) >= s.config.ResetRateWindow {
		user.ResetWindowStart = &now
		user.ResetRequestCount = 0
	}
	if user.ResetRequestCount >= s.config.ResetRateLimit {
		s.logger.WithField("user_id", user.ID).Warn("password reset rate limit reached")
		return nil
	}
	user.ResetRequestCount++

	code, err := s.otp.Generate(now)
	if err != nil {
		return err
	}
	codeHash, err := s.passwordHash.Hash(code)
	if err != nil {
		return err
	}
	expiresAt := now.Add(s.config.OTPTTL)
	user.ResetOTPHash = &codeHash
	user.ResetOTPExpiresAt = &expiresAt
	user.ResetOTPAttempts = 0
	user.ResetState = entity.ResetStateRequested
	if err := s.users.UpdateReset(ctx, user); err != nil {
		return err
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordResetOTP(ctx, user.Email, code, s.config.OTPTTL); err != nil {
			return err
		}
	}
	s.logSecurity(ctx, &user.ID, "", entity.ResetRequested, nil)
	return nil
}

// VerifyResetOTP exchanges a valid code for a short-lived reset token.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email string, code string) (*ResetTokenResult, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidOTP
	}
	if user.ResetState != entity.ResetStateRequested || user.ResetOTPHash == nil || user.ResetOTPExpiresAt == nil {
		return nil, ErrResetNotRequested
	}

	if !s.clock.Now().Before(*user.ResetOTPExpiresAt) {
		user.ClearReset()
		if err := s.users.UpdateReset(ctx, user); err != nil {
			return nil, err
		}
		return nil, ErrOTPExpired
	}

	if !s.passwordHash.Verify(*user.ResetOTPHash, strings.TrimSpace(code)) {
		user.ResetOTPAttempts++
		failure := ErrInvalidOTP
		if user.ResetOTPAttempts >= s.config.OTPMaxAttempts {
			user.ClearReset()
			failure = ErrOTPAttemptsExceeded
		}
		if err := s.users.UpdateReset(ctx, user); err != nil {
			return nil, err
		}
		return nil, failure
	}

	user.ResetOTPHash = nil
	user.ResetOTPExpiresAt = nil
	user.ResetOTPAttempts = 0
	user.ResetState = entity.ResetStateVerified
	if err := s.users.UpdateReset(ctx, user); err != nil {
		return nil, err
	}

	token, ttl, err := s.tokens.IssueResetToken(user.ID)
	if err != nil {
		return nil, err
	}
	s.logSecurity(ctx, &user.ID, "", entity.ResetVerified, nil)
	return &ResetTokenResult{ResetToken: token, ExpiresIn: int64(ttl.Seconds())}, nil
}

// ResetPassword sets a new password and signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken string, newPassword string) error {
	if strings.TrimSpace(resetToken) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	userID, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.ResetState != entity.ResetStateVerified {
		return ErrResetNotVerified
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ClearReset()
	if err := s.users.UpdatePassword(ctx, user); err != nil {
		return err
	}

	if _, err := s.sessions.RemoveAll(ctx, user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to clear sessions after password reset")
	}
	s.logSecurity(ctx, &user.ID, "", entity.Reset, nil)
	return nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

// DeleteAccount removes the user; embedded sessions go with it.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	deleted, err := s.users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}
	s.logSecurity(ctx, &userID, "", entity.AccountDeleted, nil)
	return nil
}

func (s *AuthService) establishSession(ctx context.Context, user *entity.User, info device.RequestInfo) (*AuthResult, error) {
	fp, err := s.devices.Identify(ctx, info)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Upsert(ctx, user.ID, fp)
	if err != nil {
		return nil, err
	}
	token, ttl, err := s.tokens.IssueLoginToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
		User:      user,
		Session:   session,
	}, nil
}

// logSecurity writes an audit row; failures are logged and otherwise ignored.
func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:   userID,
		Action:   action,
		Metadata: payload,
	}
	if ipAddress != "" {
		log.IPAddress = &ipAddress
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("security log write failed")
	}
}

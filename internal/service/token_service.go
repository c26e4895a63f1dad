package service

import (
	"time"

	"fintrack/internal/utils"

	"github.com/google/uuid"
)

const (
	PurposePasswordReset = "password_reset"

	DefaultLoginTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL = 15 * time.Minute
)

// TokenService issues and verifies login and password-reset tokens. A token is
// only accepted for the purpose it was issued for.
type TokenService struct {
	manager  utils.TokenManager
	loginTTL time.Duration
	resetTTL time.Duration
}

func NewTokenService(manager utils.TokenManager, loginTTL, resetTTL time.Duration) *TokenService {
	if loginTTL <= 0 {
		loginTTL = DefaultLoginTokenTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &TokenService{manager: manager, loginTTL: loginTTL, resetTTL: resetTTL}
}

func (s *TokenService) IssueLoginToken(userID uuid.UUID) (string, time.Duration, error) {
	return s.manager.Issue(userID.String(), "", s.loginTTL)
}

func (s *TokenService) IssueResetToken(userID uuid.UUID) (string, time.Duration, error) {
	return s.manager.Issue(userID.String(), PurposePasswordReset, s.resetTTL)
}

func (s *TokenService) VerifyLoginToken(token string) (uuid.UUID, error) {
	return s.verify(token, "")
}

func (s *TokenService) VerifyResetToken(token string) (uuid.UUID, error) {
	return s.verify(token, PurposePasswordReset)
}

func (s *TokenService) verify(token string, purpose string) (uuid.UUID, error) {
	claims, err := s.manager.Parse(token)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

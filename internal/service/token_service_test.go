package service

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/utils"

	"github.com/google/uuid"
)

func TestTokenServicePurposes(t *testing.T) {
	clock := newFakeClock()
	tokens := NewTokenService(utils.TokenManager{Secret: []byte("k"), Issuer: "fintrack", Now: clock.Now}, 0, 0)
	userID := uuid.New()

	login, ttl, err := tokens.IssueLoginToken(userID)
	if err != nil || ttl != DefaultLoginTokenTTL {
		t.Fatalf("IssueLoginToken = %v, %v", ttl, err)
	}
	reset, ttl, err := tokens.IssueResetToken(userID)
	if err != nil || ttl != DefaultResetTokenTTL {
		t.Fatalf("IssueResetToken = %v, %v", ttl, err)
	}

	if got, err := tokens.VerifyLoginToken(login); err != nil || got != userID {
		t.Fatalf("VerifyLoginToken = %v, %v", got, err)
	}
	if got, err := tokens.VerifyResetToken(reset); err != nil || got != userID {
		t.Fatalf("VerifyResetToken = %v, %v", got, err)
	}

	if _, err := tokens.VerifyLoginToken(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reset token accepted as login token: %v", err)
	}
	if _, err := tokens.VerifyResetToken(login); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("login token accepted as reset token: %v", err)
	}
}

func TestTokenServiceExpiry(t *testing.T) {
	clock := newFakeClock()
	tokens := NewTokenService(utils.TokenManager{Secret: []byte("k"), Now: clock.Now}, time.Hour, time.Minute)
	userID := uuid.New()

	reset, _, err := tokens.IssueResetToken(userID)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := tokens.VerifyResetToken(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired reset token accepted: %v", err)
	}
}

func TestTokenServiceRejectsNonUUIDSubject(t *testing.T) {
	manager := utils.TokenManager{Secret: []byte("k")}
	tokens := NewTokenService(manager, 0, 0)
	raw, _, err := manager.Issue("not-a-uuid", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.VerifyLoginToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

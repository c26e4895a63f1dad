package service

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/device"
	"fintrack/internal/repository"

	"github.com/google/uuid"
)

type GateState string

const (
	StateUnauthenticated  GateState = "unauthenticated"
	StateTokenVerified    GateState = "token_verified"
	StateSubjectConfirmed GateState = "subject_confirmed"
	StateSessionConfirmed GateState = "session_confirmed"
	StateAdmitted         GateState = "admitted"
)

// Rejection records the last state the gate reached before refusing a request.
type Rejection struct {
	State GateState
	Err   error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("auth gate rejected in state %s: %v", r.State, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

type Admission struct {
	State    GateState
	UserID   uuid.UUID
	DeviceID string
	Device   device.Fingerprint
}

// AuthGate decides whether a bearer token and the calling device may reach a
// protected route. Steps run strictly in order and stop at the first failure.
type AuthGate struct {
	tokens   *TokenService
	users    repository.UserRepository
	devices  DeviceIdentifier
	sessions *SessionService
	tasks    TaskRunner
}

func NewAuthGate(
	tokens *TokenService,
	users repository.UserRepository,
	devices DeviceIdentifier,
	sessions *SessionService,
	tasks TaskRunner,
) *AuthGate {
	return &AuthGate{tokens: tokens, users: users, devices: devices, sessions: sessions, tasks: tasks}
}

func (g *AuthGate) Admit(ctx context.Context, token string, info device.RequestInfo) (*Admission, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &Rejection{State: StateUnauthenticated, Err: ErrMissingCredential}
	}

	userID, err := g.tokens.VerifyLoginToken(token)
	if err != nil {
		return nil, &Rejection{State: StateUnauthenticated, Err: ErrInvalidToken}
	}

	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		return nil, &Rejection{State: StateTokenVerified, Err: fmt.Errorf("%w: %v", ErrSessionUnverifiable, err)}
	}
	if user == nil {
		return nil, &Rejection{State: StateTokenVerified, Err: ErrSubjectNotFound}
	}

	fp, err := g.devices.Identify(ctx, info)
	if err != nil {
		return nil, &Rejection{State: StateSubjectConfirmed, Err: fmt.Errorf("%w: %v", ErrSessionUnverifiable, err)}
	}
	if !user.SessionList().Contains(fp.DeviceID) {
		return nil, &Rejection{State: StateSubjectConfirmed, Err: ErrSessionTerminated}
	}

	if g.tasks != nil {
		deviceID := fp.DeviceID
		g.tasks.Go("session.touch", func(ctx context.Context) error {
			g.sessions.Touch(ctx, userID, deviceID)
			return nil
		})
	}

	return &Admission{State: StateAdmitted, UserID: userID, DeviceID: fp.DeviceID, Device: fp}, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/device"
	"fintrack/internal/entity"
	"fintrack/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultActiveWindow = 30 * time.Minute
	DefaultRetention    = 7 * 24 * time.Hour
)

// SessionService is the per-user device session registry. It holds no state of
// its own: every operation reads the user's embedded collection, changes it and
// writes the whole collection back.
//
// Two concurrent writers for the same user race; the later ReplaceSessions wins
// and the other change is lost. Two outcomes follow:
//   - A device whose upsert is lost is rejected by the gate until it logs in again.
//   - A Touch that read the collection before a Remove or RemoveOthers writes the
//     removed sessions back. The terminate request's own detached touch is the
//     usual trigger, so a terminated device can stay admitted until it is
//     terminated again.
type SessionService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	clock    Clock
	config   SessionConfig
	logger   logrus.FieldLogger
}

func NewSessionService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	clock Clock,
	config SessionConfig,
	logger logrus.FieldLogger,
) *SessionService {
	if clock == nil {
		clock = RealClock{}
	}
	if config.ActiveWindow <= 0 {
		config.ActiveWindow = DefaultActiveWindow
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionService{users: users, sessions: sessions, clock: clock, config: config, logger: logger}
}

// Upsert registers or refreshes the session of the fingerprinted device.
func (s *SessionService) Upsert(ctx context.Context, userID uuid.UUID, fp device.Fingerprint) (*entity.Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	list, session := user.SessionList().Upsert(fp.Session(), s.clock.Now())
	found, err := s.sessions.ReplaceSessions(ctx, userID, list)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return &session, nil
}

// Touch refreshes a session's activity. It is best-effort: a missing user or
// session is a no-op and failures are logged, never returned. It rewrites the
// whole collection it read, so it can restore a session removed in between.
func (s *SessionService) Touch(ctx context.Context, userID uuid.UUID, deviceID string) {
	entry := s.logger.WithFields(logrus.Fields{"user_id": userID, "device_id": deviceID})

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		entry.WithError(err).Warn("session activity refresh failed")
		return
	}
	if user == nil {
		return
	}
	list := user.SessionList()
	if !list.Touch(deviceID, s.clock.Now()) {
		return
	}
	if _, err := s.sessions.ReplaceSessions(ctx, userID, list); err != nil {
		entry.WithError(err).Warn("session activity refresh failed")
	}
}

// List recomputes every IsActive flag, persists the flags when they changed and
// returns the sessions newest first.
func (s *SessionService) List(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	list := user.SessionList()
	if list.RefreshActivity(s.clock.Now(), s.config.ActiveWindow) {
		if _, err := s.sessions.ReplaceSessions(ctx, userID, list); err != nil {
			return nil, err
		}
	}
	return list.SortedByRecency(), nil
}

// Remove deletes one session. The result reports whether the user exists, not
// whether a session matched.
func (s *SessionService) Remove(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	return s.sessions.ReplaceSessions(ctx, userID, user.SessionList().Remove(deviceID))
}

// RemoveOthers keeps only the session of keepDeviceID.
func (s *SessionService) RemoveOthers(ctx context.Context, userID uuid.UUID, keepDeviceID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	return s.sessions.ReplaceSessions(ctx, userID, user.SessionList().KeepOnly(keepDeviceID))
}

// RemoveAll signs the user out of every device.
func (s *SessionService) RemoveAll(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.sessions.ReplaceSessions(ctx, userID, entity.SessionList{})
}

func (s *SessionService) Exists(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	return user.SessionList().Contains(deviceID), nil
}

// SweepStale removes, across all users, sessions idle longer than the retention window.
func (s *SessionService) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.config.Retention)
	removed, err := s.sessions.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return removed, fmt.Errorf("sweep stale sessions: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"removed": removed, "cutoff": cutoff}).Info("stale sessions swept")
	return removed, nil
}

// SecurityAnalysis runs the session heuristics over the user's current sessions.
func (s *SessionService) SecurityAnalysis(ctx context.Context, userID uuid.UUID) (SecurityAnalysis, error) {
	sessions, err := s.List(ctx, userID)
	if err != nil {
		return SecurityAnalysis{}, err
	}
	return AnalyzeSessions(sessions, s.clock.Now()), nil
}

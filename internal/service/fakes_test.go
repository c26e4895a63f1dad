package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"fintrack/internal/device"
	"fintrack/internal/entity"
	"fintrack/internal/repository"
	"fintrack/internal/utils"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore backs both UserRepository and SessionRepository with a map.
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*entity.User
	findErr error
	saveErr error
	writes  int
	finds   int
	// userWrites counts session writes per user.
	userWrites map[uuid.UUID]int
	// afterFind runs once, after the next FindByID has read its row.
	afterFind func()
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*entity.User{}, userWrites: map[uuid.UUID]int{}}
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	c.Sessions = slices.Clone(u.Sessions)
	return &c
}

func (m *memStore) Create(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Sessions == nil {
		user.Sessions = []entity.Session{}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := m.findByID(id)
	m.mu.Lock()
	hook := m.afterFind
	m.afterFind = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return user, err
}

func (m *memStore) findByID(id uuid.UUID) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateReset(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[user.ID]
	if !ok {
		return nil
	}
	stored.ResetOTPHash = user.ResetOTPHash
	stored.ResetOTPExpiresAt = user.ResetOTPExpiresAt
	stored.ResetOTPAttempts = user.ResetOTPAttempts
	stored.ResetState = user.ResetState
	stored.ResetWindowStart = user.ResetWindowStart
	stored.ResetRequestCount = user.ResetRequestCount
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[user.ID]
	if !ok {
		return nil
	}
	stored.PasswordHash = user.PasswordHash
	stored.ResetOTPHash = user.ResetOTPHash
	stored.ResetOTPExpiresAt = user.ResetOTPExpiresAt
	stored.ResetOTPAttempts = user.ResetOTPAttempts
	stored.ResetState = user.ResetState
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	delete(m.users, id)
	return ok, nil
}

func (m *memStore) ReplaceSessions(_ context.Context, userID uuid.UUID, sessions entity.SessionList) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return false, m.saveErr
	}
	stored, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	m.writes++
	m.userWrites[userID]++
	stored.Sessions = slices.Clone([]entity.Session(sessions))
	return true, nil
}

func (m *memStore) DeleteInactiveBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, u := range m.users {
		kept, n := u.SessionList().PruneInactiveBefore(cutoff)
		if n == 0 {
			continue
		}
		m.writes++
		m.userWrites[u.ID]++
		u.Sessions = []entity.Session(kept)
		removed += n
	}
	return removed, nil
}

func (m *memStore) sessionsOf(id uuid.UUID) entity.SessionList {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.SessionList()
	}
	return nil
}

func (m *memStore) writesFor(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userWrites[id]
}

func (m *memStore) seedUser(email string) *entity.User {
	u := &entity.User{ID: uuid.New(), Username: "tester", Email: email, PasswordHash: "hashed:secret", ResetState: entity.ResetStateNone}
	_ = m.Create(context.Background(), u)
	return u
}

type recordedLogs struct {
	mu   sync.Mutex
	logs []entity.SecurityLog
}

func (r *recordedLogs) Log(_ context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *recordedLogs) actions() []entity.SecurityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.SecurityAction, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// plainHasher keeps tests fast; bcrypt is covered by BcryptPasswordHasher's own test.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(hash, password string) bool    { return hash == "hashed:"+password }

type fixedOTP struct{ code string }

func (g fixedOTP) Generate(time.Time) (string, error) { return g.code, nil }

type sentEmail struct {
	kind string
	to   string
	code string
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (e *recordingEmail) SendPasswordResetOTP(_ context.Context, email, code string, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, sentEmail{kind: "reset", to: email, code: code})
	return nil
}

func (e *recordingEmail) SendWelcomeEmail(_ context.Context, email, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, sentEmail{kind: "welcome", to: email})
	return nil
}

// queuedRunner holds detached tasks until the test drains them.
type queuedRunner struct {
	mu    sync.Mutex
	names []string
	queue []func(ctx context.Context) error
}

func (r *queuedRunner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.queue = append(r.queue, fn)
}

func (r *queuedRunner) drain() {
	r.mu.Lock()
	queue := r.queue
	r.queue = nil
	r.mu.Unlock()
	for _, fn := range queue {
		_ = fn(context.Background())
	}
}

func (r *queuedRunner) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

type harness struct {
	store    *memStore
	clock    *fakeClock
	logs     *recordedLogs
	email    *recordingEmail
	runner   *queuedRunner
	tokens   *TokenService
	sessions *SessionService
	gate     *AuthGate
	auth     *AuthService
}

func newHarness() *harness {
	logger, _ := logtest.NewNullLogger()
	h := &harness{
		store:  newMemStore(),
		clock:  newFakeClock(),
		logs:   &recordedLogs{},
		email:  &recordingEmail{},
		runner: &queuedRunner{},
	}
	manager := utils.TokenManager{Secret: []byte("test-secret"), Issuer: "fintrack-test", Now: h.clock.Now}
	h.tokens = NewTokenService(manager, 0, 0)
	h.sessions = NewSessionService(h.store, h.store, h.clock, SessionConfig{}, logger)
	devices := device.NewFingerprinter(nil)
	h.gate = NewAuthGate(h.tokens, h.store, devices, h.sessions, h.runner)
	h.auth = NewAuthService(
		h.store, h.logs, h.sessions, h.tokens, devices,
		h.email, plainHasher{}, fixedOTP{code: "123456"}, h.runner,
		h.clock, AuthConfig{}, logger,
	)
	return h
}

func requestFrom(userAgent, ip string) device.RequestInfo {
	return device.RequestInfo{UserAgent: userAgent, RemoteAddr: ip + ":51234"}
}

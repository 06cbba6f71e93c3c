package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// EventType identifies a session change.
type EventType int

const (
	EventSignedIn EventType = iota + 1
	EventSignedOut
	EventTokenRefreshed
)

func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every session change.
type Event struct {
	Type EventType
	// User is nil for EventSignedOut.
	User *User
}

// State is a snapshot of the session for views.
type State struct {
	User       *User
	HasSession bool
	Loading    bool
	Err        error
	// Usable is false when no backend client could be built.
	Usable bool
}

const (
	defaultRefreshMargin = 60 * time.Second
	defaultCheckInterval = 15 * time.Second
	eventBuffer          = 16
)

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshMargin sets how long before expiry the access token is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.margin = d
		}
	}
}

// WithCheckInterval sets how often the watcher looks at the token expiry.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger overrides the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager owns the current identity and backend session.
type Manager struct {
	auth        Authenticator
	repo        Repository
	unavailable error

	margin   time.Duration
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger

	mu      sync.RWMutex
	tokens  *Tokens
	loading bool
	err     error

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	watchOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a manager on top of a backend auth API. A nil repo keeps
// sessions in memory only.
func NewManager(auth Authenticator, repo Repository, opts ...Option) *Manager {
	if repo == nil {
		repo = NopRepository{}
	}
	m := &Manager{
		auth:     auth,
		repo:     repo,
		margin:   defaultRefreshMargin,
		interval: defaultCheckInterval,
		now:      time.Now,
		log:      logrus.StandardLogger(),
		subs:     make(map[int]chan Event),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewUnavailable creates a permanently unusable manager. Every operation fails
// with ErrBackendUnavailable and no network call is ever made.
func NewUnavailable(reason error) *Manager {
	m := NewManager(nil, nil)
	if reason == nil {
		m.unavailable = ErrBackendUnavailable
	} else {
		m.unavailable = fmt.Errorf("%w: %v", ErrBackendUnavailable, reason)
	}
	m.err = m.unavailable
	return m
}

// Initialize restores a persisted session and starts the token watcher.
// A persisted session the backend refuses is discarded without an error.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.unavailable != nil {
		return m.unavailable
	}

	m.setLoading(true)
	defer m.setLoading(false)

	stored, err := m.repo.Load(ctx)
	if err != nil {
		m.log.WithError(err).Warn("Failed to load persisted session")
	}
	if stored != nil {
		restored := m.restore(ctx, stored)
		m.mu.Lock()
		m.tokens = restored
		m.mu.Unlock()
	}

	m.watchOnce.Do(func() {
		m.wg.Add(1)
		go m.watch()
	})
	return nil
}

// restore refreshes an expired session and validates it with the backend.
func (m *Manager) restore(ctx context.Context, t *Tokens) *Tokens {
	if t.ExpiresAt.IsZero() {
		if _, exp, err := TokenClaims(t.AccessToken); err == nil {
			t.ExpiresAt = exp
		}
	}

	if t.Expired(m.now(), m.margin) {
		refreshed, err := m.auth.Refresh(ctx, t.RefreshToken)
		if err != nil {
			if IsRejected(err) {
				m.discard(ctx, "refresh rejected", err)
				return nil
			}
			m.log.WithError(err).Warn("Failed to refresh persisted session, will retry")
			return t
		}
		t = refreshed
		m.persist(ctx, *t)
	}

	u, err := m.auth.User(ctx, t.AccessToken)
	if err != nil {
		if IsRejected(err) {
			m.discard(ctx, "validation rejected", err)
			return nil
		}
		m.log.WithError(err).Warn("Failed to validate persisted session, keeping it")
		return t
	}
	t.User = *u
	return t
}

func (m *Manager) discard(ctx context.Context, reason string, err error) {
	m.log.WithError(err).WithField("reason", reason).Info("Discarding persisted session")
	if cerr := m.repo.Clear(ctx); cerr != nil {
		m.log.WithError(cerr).Warn("Failed to clear persisted session")
	}
}

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*User, error) {
	if m.unavailable != nil {
		return nil, m.unavailable
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.fail(ErrMissingCredentials)
		return nil, ErrMissingCredentials
	}

	m.setLoading(true)
	defer m.setLoading(false)

	tokens, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.fail(err)
		return nil, err
	}

	u := m.adopt(ctx, tokens)
	return u, nil
}

// SignUp registers an account. A pending email confirmation is a successful
// outcome without a session.
func (m *Manager) SignUp(ctx context.Context, email, password, confirm string) (SignUpResult, error) {
	if m.unavailable != nil {
		return SignUpResult{}, m.unavailable
	}

	email = strings.TrimSpace(email)
	var invalid error
	switch {
	case email == "" || password == "":
		invalid = ErrMissingCredentials
	case password != confirm:
		invalid = ErrPasswordMismatch
	case utf8.RuneCountInString(password) < MinPasswordLength:
		invalid = ErrWeakPassword
	}
	if invalid != nil {
		m.fail(invalid)
		return SignUpResult{}, invalid
	}

	m.setLoading(true)
	defer m.setLoading(false)

	tokens, err := m.auth.SignUp(ctx, email, password)
	if err != nil {
		m.fail(err)
		return SignUpResult{}, err
	}

	if tokens == nil {
		m.mu.Lock()
		m.err = nil
		m.mu.Unlock()
		m.log.WithField("email", email).Info("Sign up successful, email confirmation pending")
		return SignUpResult{PendingConfirmation: true}, nil
	}

	return SignUpResult{User: m.adopt(ctx, tokens)}, nil
}

// SignOut revokes the session. When the backend no longer knows the session
// it is cleared locally as well.
func (m *Manager) SignOut(ctx context.Context) error {
	if m.unavailable != nil {
		return m.unavailable
	}

	m.mu.RLock()
	current := m.tokens
	m.mu.RUnlock()

	if current != nil {
		m.setLoading(true)
		err := m.auth.SignOut(ctx, current.AccessToken)
		m.setLoading(false)
		if err != nil && !IsRejected(err) {
			m.fail(err)
			return err
		}
	}

	m.mu.Lock()
	m.tokens = nil
	m.err = nil
	m.mu.Unlock()

	if err := m.repo.Clear(ctx); err != nil {
		m.log.WithError(err).Warn("Failed to clear persisted session")
	}
	if current != nil {
		m.publish(Event{Type: EventSignedOut})
	}
	return nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := State{
		HasSession: m.tokens != nil,
		Loading:    m.loading,
		Err:        m.err,
		Usable:     m.unavailable == nil,
	}
	if m.tokens != nil {
		u := m.tokens.User
		s.User = &u
	}
	return s
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return ""
	}
	return m.tokens.AccessToken
}

// UserID returns the signed-in user's id, or "" when signed out.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return ""
	}
	return m.tokens.User.ID
}

// Subscribe registers fn for session changes. Events are delivered in order on
// a goroutine of their own. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Event)) func() {
	ch := make(chan Event, eventBuffer)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	go func() {
		for ev := range ch {
			fn(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
			m.subMu.Unlock()
		})
	}
}

// Close stops the watcher and every subscription.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()

		m.subMu.Lock()
		for id, ch := range m.subs {
			delete(m.subs, id)
			close(ch)
		}
		m.subMu.Unlock()
	})
}

func (m *Manager) watch() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			m.refreshIfDue(ctx)
			cancel()
		}
	}
}

// refreshIfDue refreshes the access token when it is within the margin of
// expiring. A rejected refresh token ends the session.
func (m *Manager) refreshIfDue(ctx context.Context) {
	m.mu.RLock()
	current := m.tokens
	m.mu.RUnlock()

	if current == nil || !current.Expired(m.now(), m.margin) {
		return
	}

	refreshed, err := m.auth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if !IsRejected(err) {
			m.log.WithError(err).Warn("Failed to refresh session, will retry")
			return
		}

		m.mu.Lock()
		ended := m.tokens == current
		if ended {
			m.tokens = nil
		}
		m.mu.Unlock()
		if !ended {
			return
		}

		m.log.WithError(err).Info("Session ended by the backend")
		if cerr := m.repo.Clear(ctx); cerr != nil {
			m.log.WithError(cerr).Warn("Failed to clear persisted session")
		}
		m.publish(Event{Type: EventSignedOut})
		return
	}

	if refreshed.User.ID == "" {
		refreshed.User = current.User
	}

	m.mu.Lock()
	replaced := m.tokens == current
	if replaced {
		m.tokens = refreshed
	}
	m.mu.Unlock()
	if !replaced {
		return
	}

	m.persist(ctx, *refreshed)
	u := refreshed.User
	m.publish(Event{Type: EventTokenRefreshed, User: &u})
}

func (m *Manager) adopt(ctx context.Context, t *Tokens) *User {
	m.mu.Lock()
	m.tokens = t
	m.err = nil
	m.mu.Unlock()

	m.persist(ctx, *t)
	u := t.User
	m.publish(Event{Type: EventSignedIn, User: &u})
	return &u
}

func (m *Manager) persist(ctx context.Context, t Tokens) {
	if err := m.repo.Save(ctx, t); err != nil {
		m.log.WithError(err).Warn("Failed to persist session")
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		ch <- ev
	}
}

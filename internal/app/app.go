package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"smart-shopping-list/internal/config"
	"smart-shopping-list/internal/database"
	"smart-shopping-list/internal/llm"
	"smart-shopping-list/internal/metrics"
	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"
	"smart-shopping-list/internal/supabase"

	"github.com/sirupsen/logrus"
)

// App holds the application's dependencies.
type App struct {
	cfg *config.Config
	db  *database.DB

	Session   *session.Manager
	Store     *store.Store
	Suggester *llm.GeminiSuggester
	Metrics   *metrics.Store

	unsubscribe func()
}

// New wires the application from cfg. A missing or malformed backend
// configuration does not fail: the session becomes permanently unusable
// instead, and every data operation reports it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		Metrics: metrics.NewStore(db.SQL),
	}

	var repo session.Repository = session.NopRepository{}
	if cfg.SessionPersist {
		repo = session.NewSQLRepository(db.SQL)
	}

	var gateway shopping.Gateway
	client, err := newSupabaseClient(cfg)
	if err != nil {
		logrus.WithError(err).Error("Supabase client is not available")
		a.Session = session.NewUnavailable(err)
		gateway = offlineGateway{reason: a.Session.State().Err}
	} else {
		a.Session = session.NewManager(supabase.NewAuth(client), repo,
			session.WithRefreshMargin(cfg.SessionRefreshMargin),
		)
		gateway = metrics.InstrumentGateway(supabase.NewGateway(client, a.Session))
	}
	a.Store = store.New(gateway, a.Session)

	a.Suggester, err = llm.NewGeminiSuggester(ctx, cfg, a.Metrics)
	if err != nil {
		logrus.WithError(err).Warn("Product suggestions are disabled")
		a.Suggester = llm.Disabled()
	}

	return a, nil
}

func newSupabaseClient(cfg *config.Config) (*supabase.Client, error) {
	if !cfg.BackendConfigured() {
		return nil, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}
	return supabase.NewClient(supabase.Config{URL: cfg.SupabaseURL, AnonKey: cfg.SupabaseAnonKey})
}

// Start restores the persisted session, loads its data and follows session
// changes made outside of this App, such as a revoked refresh token.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Initialize(ctx); err != nil {
		return err
	}
	a.unsubscribe = a.Session.Subscribe(a.onSessionEvent)

	if a.Session.UserID() == "" {
		return nil
	}
	return a.Store.RefreshAll(ctx)
}

func (a *App) onSessionEvent(ev session.Event) {
	logrus.WithField("event", ev.Type.String()).Debug("Session changed")
	// a sign-in may have happened since the event was queued
	if ev.Type == session.EventSignedOut && a.Session.UserID() == "" {
		a.Store.Reset()
	}
}

// SignIn signs in and loads the user's data.
func (a *App) SignIn(ctx context.Context, email, password string) (*session.User, error) {
	u, err := a.Session.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.reload(ctx)
	return u, nil
}

// SignUp registers an account, loading its data when a session was issued.
func (a *App) SignUp(ctx context.Context, email, password, confirm string) (session.SignUpResult, error) {
	res, err := a.Session.SignUp(ctx, email, password, confirm)
	if err != nil {
		return res, err
	}
	if res.User != nil {
		a.reload(ctx)
	}
	return res, nil
}

// SignOut ends the session and discards the user's data.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.Session.SignOut(ctx); err != nil {
		return err
	}
	a.Store.Reset()
	return nil
}

// reload replaces the mirror with the new identity's data. A load failure
// stays recorded in the store for the views.
func (a *App) reload(ctx context.Context) {
	a.Store.Reset()
	if err := a.Store.RefreshAll(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to load data after sign in")
	}
}

// DataDir is the directory holding the local database.
func (a *App) DataDir() string {
	return filepath.Dir(a.cfg.DatabasePath)
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Close releases every resource of the App.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.Session.Close()
	if err := a.Suggester.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close Gemini client")
	}
	return a.db.Close()
}

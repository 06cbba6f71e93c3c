// Package web serves the shopping lists of the signed-in user over HTTP.
package web

import (
	"context"
	"net/http"
	"net/url"

	"smart-shopping-list/internal/llm"
	"smart-shopping-list/internal/metrics"
	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Accounts signs users in and out, keeping the data store in step.
type Accounts interface {
	SignIn(ctx context.Context, email, password string) (*session.User, error)
	SignUp(ctx context.Context, email, password, confirm string) (session.SignUpResult, error)
	SignOut(ctx context.Context) error
}

// SessionState exposes the current session.
type SessionState interface {
	State() session.State
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Accounts  Accounts
	Session   SessionState
	Store     *store.Store
	Suggester llm.Suggester
	// DataDir is reported on by /healthz.
	DataDir string
	Locale  string
}

// Server holds the HTTP handlers.
type Server struct {
	accounts  Accounts
	session   SessionState
	store     *store.Store
	suggester llm.Suggester
	dataDir   string
	locale    string
}

// NewServer creates a Server.
func NewServer(d Deps) *Server {
	suggester := d.Suggester
	if suggester == nil {
		suggester = llm.Disabled()
	}
	return &Server{
		accounts:  d.Accounts,
		session:   d.Session,
		store:     d.Store,
		suggester: suggester,
		dataDir:   d.DataDir,
		locale:    d.Locale,
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions()))
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/capabilities", s.handleCapabilities)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Get("/session", s.handleSession)
		})

		r.Get("/home", s.handleHome)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/error", s.handleDismissError)
		r.Post("/suggestions", s.handleSuggest)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleCreateProduct)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProduct)
				r.Put("/", s.handleUpdateProduct)
				r.Delete("/", s.handleDeleteProduct)
			})
		})

		r.Route("/lists", func(r chi.Router) {
			r.Post("/", s.handleCreateList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetList)
				r.Put("/", s.handleRenameList)
				r.Delete("/", s.handleDeleteList)
				r.Post("/items", s.handleAddItem)
				r.Patch("/items/{productID}", s.handleUpdateItem)
				r.Delete("/items/{productID}", s.handleRemoveItem)
				r.Post("/items/{productID}/toggle", s.handleToggleItem)
			})
		})
	})

	return r
}

// corsOptions admits local front ends only.
func corsOptions() cors.Options {
	return cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return false
			}
			switch parsed.Hostname() {
			case "localhost", "127.0.0.1", "::1":
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

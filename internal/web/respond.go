package web

import (
	"errors"
	"net/http"

	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"
	"smart-shopping-list/internal/supabase"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

// renderDataError maps a store failure onto a status code.
func renderDataError(w http.ResponseWriter, r *http.Request, err error) {
	status := dataStatus(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", r.URL.Path).Warn("Data request failed")
	}
	renderError(w, r, status, err.Error())
}

func dataStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shopping.ErrEmptyName),
		errors.Is(err, shopping.ErrInvalidQuantity),
		errors.Is(err, shopping.ErrDuplicateItem),
		errors.Is(err, supabase.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrListNotFound),
		errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, shopping.ErrItemNotFound),
		errors.Is(err, shopping.ErrNotFound):
		return http.StatusNotFound
	case session.IsRejected(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// renderAuthError renders err localized, the way the login forms show it.
func (s *Server) renderAuthError(w http.ResponseWriter, r *http.Request, err error) {
	renderError(w, r, authStatus(err), session.Describe(err, s.locale))
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, session.ErrPasswordMismatch),
		errors.Is(err, session.ErrWeakPassword):
		return http.StatusBadRequest
	case session.IsRejected(err):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// banner is the message of the store's last failure, shown next to data.
func (s *Server) banner() string {
	if err := s.store.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// ensureData guards the read routes. It loads the mirror on first use and
// answers 401 without a user and 503 when nothing could be loaded.
func (s *Server) ensureData(w http.ResponseWriter, r *http.Request) bool {
	if s.session.State().User == nil {
		renderError(w, r, http.StatusUnauthorized, store.ErrNotAuthenticated.Error())
		return false
	}
	if s.store.Loaded() {
		return true
	}
	if err := s.store.Err(); err != nil {
		renderError(w, r, http.StatusServiceUnavailable, err.Error())
		return false
	}
	if err := s.store.RefreshAll(r.Context()); err != nil {
		renderError(w, r, http.StatusServiceUnavailable, err.Error())
		return false
	}
	return true
}

package web

import (
	"net/http"

	"smart-shopping-list/internal/session"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CredentialsRequest struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}

	RegisterResponse struct {
		User                *session.User `json:"user,omitempty"`
		PendingConfirmation bool          `json:"pendingConfirmation"`
	}

	SessionResponse struct {
		User       *session.User `json:"user"`
		HasSession bool          `json:"hasSession"`
		Loading    bool          `json:"loading"`
		Usable     bool          `json:"usable"`
		Error      string        `json:"error,omitempty"`
	}
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.accounts.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		logrus.WithError(err).Info("Registration failed")
		s.renderAuthError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{User: res.User, PendingConfirmation: res.PendingConfirmation})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		logrus.WithError(err).Info("Sign in failed")
		s.renderAuthError(w, r, err)
		return
	}

	render.JSON(w, r, s.sessionResponse(u))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.SignOut(r.Context()); err != nil {
		s.renderAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.sessionResponse(nil))
}

func (s *Server) sessionResponse(u *session.User) SessionResponse {
	st := s.session.State()
	if u == nil {
		u = st.User
	}
	resp := SessionResponse{
		User:       u,
		HasSession: st.HasSession,
		Loading:    st.Loading,
		Usable:     st.Usable,
	}
	if st.Err != nil {
		resp.Error = session.Describe(st.Err, s.locale)
	}
	return resp
}

package web

import (
	"net/http"

	"smart-shopping-list/internal/llm"
	"smart-shopping-list/internal/metrics"
	"smart-shopping-list/internal/store"

	"github.com/go-chi/render"
)

type (
	CapabilitiesResponse struct {
		Suggestions bool   `json:"suggestions"`
		Backend     bool   `json:"backend"`
		Locale      string `json:"locale"`
	}

	SuggestRequest struct {
		Image string `json:"image"`
	}

	SuggestResponse struct {
		Suggestion *llm.Suggestion `json:"suggestion"`
	}
)

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, CapabilitiesResponse{
		Suggestions: s.suggester.Available(),
		Backend:     s.session.State().Usable,
		Locale:      s.locale,
	})
}

// handleSuggest never fails on the model's account: no suggestion is a null.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if !s.suggester.Available() {
		renderError(w, r, http.StatusNotFound, "product suggestions are disabled")
		return
	}

	var req SuggestRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Image == "" {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	render.JSON(w, r, SuggestResponse{Suggestion: s.suggester.SuggestFromDataURL(r.Context(), req.Image)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.session.State().User == nil {
		renderError(w, r, http.StatusUnauthorized, store.ErrNotAuthenticated.Error())
		return
	}
	if err := s.store.RefreshAll(r.Context()); err != nil {
		renderError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	render.JSON(w, r, s.home())
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.store.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, metrics.GetSysHealth(s.dataDir))
}

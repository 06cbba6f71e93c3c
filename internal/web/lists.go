package web

import (
	"net/http"

	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type (
	ListSummary struct {
		shopping.ShoppingList
		Progress shopping.Progress `json:"progress"`
	}

	HomeResponse struct {
		Lists []ListSummary `json:"lists"`
		Error string        `json:"error,omitempty"`
	}

	ListResponse struct {
		List     shopping.ShoppingList `json:"list"`
		Progress shopping.Progress     `json:"progress"`
		Error    string                `json:"error,omitempty"`
	}

	CreateListRequest struct {
		Name  string          `json:"name"`
		Items []shopping.Item `json:"items"`
	}

	RenameListRequest struct {
		Name string `json:"name"`
	}

	AddItemRequest struct {
		ProductID string `json:"productId"`
		Quantity  *int   `json:"quantity"`
	}
)

func summarize(l shopping.ShoppingList) ListSummary {
	return ListSummary{ShoppingList: l, Progress: shopping.ListProgress(l)}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if !s.ensureData(w, r) {
		return
	}
	render.JSON(w, r, s.home())
}

func (s *Server) home() HomeResponse {
	lists := s.store.ShoppingLists()
	resp := HomeResponse{Lists: make([]ListSummary, len(lists)), Error: s.banner()}
	for i, l := range lists {
		resp.Lists[i] = summarize(l)
	}
	return resp
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	l, err := s.store.AddShoppingList(r.Context(), req.Name, req.Items)
	if err != nil {
		renderDataError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summarize(*l))
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	if !s.ensureData(w, r) {
		return
	}
	l, ok := s.store.ShoppingList(chi.URLParam(r, "id"))
	if !ok {
		renderError(w, r, http.StatusNotFound, store.ErrListNotFound.Error())
		return
	}
	render.JSON(w, r, ListResponse{List: l, Progress: shopping.ListProgress(l), Error: s.banner()})
}

func (s *Server) handleRenameList(w http.ResponseWriter, r *http.Request) {
	var req RenameListRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	l, ok := s.store.ShoppingList(chi.URLParam(r, "id"))
	if !ok {
		renderDataError(w, r, s.missing(store.ErrListNotFound))
		return
	}
	l.Name = req.Name

	updated, err := s.store.UpdateShoppingList(r.Context(), l)
	renderList(w, r, updated, err)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteShoppingList(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderDataError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	l, err := s.store.AddProductToShoppingList(r.Context(), chi.URLParam(r, "id"), req.ProductID, qty)
	renderList(w, r, l, err)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var upd shopping.ItemUpdate
	if err := render.DecodeJSON(r.Body, &upd); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	l, err := s.store.UpdateShoppingListItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"), upd)
	renderList(w, r, l, err)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.RemoveProductFromShoppingList(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	renderList(w, r, l, err)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.TogglePurchaseItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	renderList(w, r, l, err)
}

// renderList renders the outcome of a list write.
func renderList(w http.ResponseWriter, r *http.Request, l *shopping.ShoppingList, err error) {
	if err != nil {
		renderDataError(w, r, err)
		return
	}
	render.JSON(w, r, summarize(*l))
}

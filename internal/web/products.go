package web

import (
	"net/http"

	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type ProductsResponse struct {
	Products []shopping.Product `json:"products"`
	Error    string             `json:"error,omitempty"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if !s.ensureData(w, r) {
		return
	}
	render.JSON(w, r, ProductsResponse{Products: s.store.Products(), Error: s.banner()})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in shopping.ProductInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := s.store.AddProduct(r.Context(), in)
	if err != nil {
		renderDataError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	if !s.ensureData(w, r) {
		return
	}
	p, ok := s.store.Product(chi.URLParam(r, "id"))
	if !ok {
		renderError(w, r, http.StatusNotFound, store.ErrProductNotFound.Error())
		return
	}
	render.JSON(w, r, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in shopping.ProductInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, ok := s.store.Product(chi.URLParam(r, "id"))
	if !ok {
		renderDataError(w, r, s.missing(store.ErrProductNotFound))
		return
	}
	p.Name = in.Name
	p.Description = in.Description
	p.ImageBase64 = in.ImageBase64

	updated, err := s.store.UpdateProduct(r.Context(), p)
	if err != nil {
		renderDataError(w, r, err)
		return
	}
	render.JSON(w, r, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderDataError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// missing reports notFound, or ErrNotAuthenticated when nobody is signed in
// and the mirror is empty for that reason.
func (s *Server) missing(notFound error) error {
	if s.session.State().User == nil {
		return store.ErrNotAuthenticated
	}
	return notFound
}

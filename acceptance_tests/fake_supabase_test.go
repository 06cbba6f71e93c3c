package acceptance_tests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/shopping/memory"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

const anonKey = "anon-key"

type fakeUser struct {
	ID       string
	Email    string
	Password string
}

// fakeSupabase serves the GoTrue and PostgREST endpoints the client uses,
// storing rows in a memory gateway and enforcing owner scoping per token.
type fakeSupabase struct {
	*httptest.Server

	gateway *memory.Gateway
	// confirmEmail leaves new accounts without a session until confirmed.
	confirmEmail atomic.Bool

	hits     atomic.Int32
	rpcCalls atomic.Int32

	mu      sync.Mutex
	users   map[string]*fakeUser // by email
	access  map[string]*fakeUser
	refresh map[string]*fakeUser
	serial  int
}

func newFakeSupabase(t *testing.T) *fakeSupabase {
	t.Helper()
	f := &fakeSupabase{
		gateway: memory.NewGateway(memory.WithIDGenerator(uuid.NewString)),
		users:   make(map[string]*fakeUser),
		access:  make(map[string]*fakeUser),
		refresh: make(map[string]*fakeUser),
	}

	r := chi.NewRouter()
	r.Use(f.countAndCheckKey)
	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", f.handleSignUp)
		r.Post("/token", f.handleToken)
		r.Post("/logout", f.handleLogout)
		r.Get("/user", f.handleUser)
	})
	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(f.requireUser)
		r.Get("/products", f.handleListProducts)
		r.Post("/products", f.handleCreateProduct)
		r.Patch("/products", f.handleUpdateProduct)
		r.Post("/rpc/handle_delete_product", f.handleDeleteProduct)
		r.Get("/shopping_lists", f.handleListLists)
		r.Post("/shopping_lists", f.handleCreateList)
		r.Patch("/shopping_lists", f.handleUpdateList)
		r.Delete("/shopping_lists", f.handleDeleteList)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// Remote is the backend's own view of the data, bypassing any client.
func (f *fakeSupabase) Remote() *memory.Gateway {
	return f.gateway
}

func (f *fakeSupabase) Hits() int32 {
	return f.hits.Load()
}

func (f *fakeSupabase) countAndCheckKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.Header.Get("apikey") != anonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- GoTrue ---

func (f *fakeSupabase) issue(u *fakeUser) map[string]any {
	f.serial++
	at := fmt.Sprintf("access-%d", f.serial)
	rt := fmt.Sprintf("refresh-%d", f.serial)
	f.access[at] = u
	f.refresh[rt] = u
	return map[string]any{
		"access_token":  at,
		"refresh_token": rt,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]string{"id": u.ID, "email": u.Email},
	}
}

func (f *fakeSupabase) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "bad json"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
		})
		return
	}
	u := &fakeUser{ID: uuid.NewString(), Email: body.Email, Password: body.Password}
	f.users[body.Email] = u

	if f.confirmEmail.Load() {
		writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "email": u.Email})
		return
	}
	writeJSON(w, http.StatusOK, f.issue(u))
}

func (f *fakeSupabase) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Query().Get("grant_type") {
	case "password":
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		u, ok := f.users[body.Email]
		if !ok || u.Password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_code": "invalid_credentials", "error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, f.issue(u))
	case "refresh_token":
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u, ok := f.refresh[body.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(f.refresh, body.RefreshToken)
		writeJSON(w, http.StatusOK, f.issue(u))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "unsupported grant type"})
	}
}

func (f *fakeSupabase) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := bearer(r)
	if _, ok := f.access[token]; !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	delete(f.access, token)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeSupabase) handleUser(w http.ResponseWriter, r *http.Request) {
	u, ok := f.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "email": u.Email})
}

func (f *fakeSupabase) userFor(r *http.Request) (*fakeUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.access[bearer(r)]
	return u, ok
}

// --- PostgREST ---

type ownerKey struct{}

func withOwner(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

func owner(r *http.Request) string {
	id, _ := r.Context().Value(ownerKey{}).(string)
	return id
}

func (f *fakeSupabase) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := f.userFor(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "JWT expired"})
			return
		}
		// row-level security: owner filters for anyone else match nothing
		if filter := r.URL.Query().Get("user_id"); filter != "" && filter != "eq."+u.ID {
			if r.Method == http.MethodGet || r.Method == http.MethodPatch {
				writeJSON(w, http.StatusOK, []any{})
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), u.ID)))
	})
}

func (f *fakeSupabase) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := f.gateway.ListProducts(r.Context(), owner(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type productBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ImageBase64 *string `json:"imageBase64"`
}

func (b productBody) input() shopping.ProductInput {
	in := shopping.ProductInput{Name: b.Name}
	if b.Description != nil {
		in.Description = *b.Description
	}
	if b.ImageBase64 != nil {
		in.ImageBase64 = *b.ImageBase64
	}
	return in
}

func (f *fakeSupabase) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var rows []productBody
	if err := render.DecodeJSON(r.Body, &rows); err != nil || len(rows) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected one row"})
		return
	}
	p, err := f.gateway.CreateProduct(r.Context(), owner(r), rows[0].input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, []shopping.Product{*p})
}

func (f *fakeSupabase) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}
	in := body.input()
	p, err := f.gateway.UpdateProduct(r.Context(), owner(r), shopping.Product{
		ID: idFilter(r), Name: in.Name, Description: in.Description, ImageBase64: in.ImageBase64,
	})
	if errors.Is(err, shopping.ErrNotFound) {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, []shopping.Product{*p})
}

func (f *fakeSupabase) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	f.rpcCalls.Add(1)
	var body struct {
		ProductID string `json:"product_id_to_delete"`
	}
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}
	if err := f.gateway.DeleteProduct(r.Context(), owner(r), body.ProductID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeSupabase) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := f.gateway.ListShoppingLists(r.Context(), owner(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

type listBody struct {
	Name  string          `json:"name"`
	Items []shopping.Item `json:"items"`
}

func (f *fakeSupabase) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var rows []listBody
	if err := render.DecodeJSON(r.Body, &rows); err != nil || len(rows) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected one row"})
		return
	}
	l, err := f.gateway.CreateShoppingList(r.Context(), owner(r), rows[0].Name, rows[0].Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, []shopping.ShoppingList{*l})
}

func (f *fakeSupabase) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var body listBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}
	l, err := f.gateway.UpdateShoppingList(r.Context(), owner(r), shopping.ShoppingList{
		ID: idFilter(r), Name: body.Name, Items: body.Items,
	})
	if errors.Is(err, shopping.ErrNotFound) {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, []shopping.ShoppingList{*l})
}

func (f *fakeSupabase) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	if err := f.gateway.DeleteShoppingList(r.Context(), owner(r), idFilter(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func idFilter(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"code": "23514", "message": err.Error()})
}

// RevokeAll invalidates every issued token, as a remote sign-out everywhere would.
func (f *fakeSupabase) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]*fakeUser)
	f.refresh = make(map[string]*fakeUser)
}

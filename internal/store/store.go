// Package store keeps the signed-in user's products and shopping lists in
// memory. The remote gateway is the source of truth; every mutation is written
// remotely first and mirrored locally only after it succeeded.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"smart-shopping-list/internal/shopping"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotAuthenticated is returned by every operation while nobody is signed in.
	ErrNotAuthenticated = errors.New("no user is signed in")
	// ErrListNotFound is returned when a list is not in the local mirror.
	ErrListNotFound = errors.New("shopping list not found")
	// ErrProductNotFound is returned when a product is not in the local mirror.
	ErrProductNotFound = errors.New("product not found")
)

// Identity supplies the current owner id; "" means signed out.
type Identity interface {
	UserID() string
}

// Store is the application data store for one process.
//
// Writes to the same list are not serialized: two overlapping whole-list
// updates race and the last response to arrive wins the local mirror.
type Store struct {
	gateway  shopping.Gateway
	identity Identity
	log      logrus.FieldLogger

	mu       sync.RWMutex
	products []shopping.Product
	lists    []shopping.ShoppingList
	inflight int
	err      error
	loaded   bool
}

// New creates an empty store.
func New(gateway shopping.Gateway, identity Identity) *Store {
	return &Store{
		gateway:  gateway,
		identity: identity,
		log:      logrus.StandardLogger(),
		products: []shopping.Product{},
		lists:    []shopping.ShoppingList{},
	}
}

// RefreshAll reloads products and lists for the current identity, fetching
// both concurrently. On failure both mirrors are emptied.
func (s *Store) RefreshAll(ctx context.Context) error {
	owner := s.identity.UserID()
	if owner == "" {
		s.mu.Lock()
		s.products = []shopping.Product{}
		s.lists = []shopping.ShoppingList{}
		s.loaded = false
		s.err = nil
		s.mu.Unlock()
		return nil
	}

	done := s.begin()
	defer done()

	var (
		products []shopping.Product
		lists    []shopping.ShoppingList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.gateway.ListProducts(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		lists, err = s.gateway.ListShoppingLists(gctx, owner)
		return err
	})

	if err := g.Wait(); err != nil {
		err = fmt.Errorf("failed to load data: %w", err)
		s.logFailure("refresh", err)

		s.mu.Lock()
		s.products = []shopping.Product{}
		s.lists = []shopping.ShoppingList{}
		s.loaded = false
		s.err = err
		s.mu.Unlock()
		return err
	}

	if products == nil {
		products = []shopping.Product{}
	}
	if lists == nil {
		lists = []shopping.ShoppingList{}
	}

	s.mu.Lock()
	s.products = products
	s.lists = lists
	s.loaded = true
	s.err = nil
	s.mu.Unlock()
	return nil
}

// Reset discards the mirror and the current error, for identity changes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = []shopping.Product{}
	s.lists = []shopping.ShoppingList{}
	s.loaded = false
	s.err = nil
}

// AddProduct creates a product and appends it to the mirror.
func (s *Store) AddProduct(ctx context.Context, in shopping.ProductInput) (*shopping.Product, error) {
	owner, err := s.owner()
	if err != nil {
		return nil, err
	}

	done := s.begin()
	defer done()

	p, err := s.gateway.CreateProduct(ctx, owner, in)
	if err != nil {
		return nil, s.fail("add product", err)
	}

	s.mu.Lock()
	s.products = append(s.products, *p)
	s.err = nil
	s.mu.Unlock()

	out := *p
	return &out, nil
}

// UpdateProduct replaces a product and refreshes the denormalized snapshot of
// every cached list item that references it. The item snapshots stored
// remotely are left as they are until their list is next written.
func (s *Store) UpdateProduct(ctx context.Context, p shopping.Product) (*shopping.Product, error) {
	owner, err := s.owner()
	if err != nil {
		return nil, err
	}

	done := s.begin()
	defer done()

	updated, err := s.gateway.UpdateProduct(ctx, owner, p)
	if err != nil {
		return nil, s.fail("update product", err)
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == updated.ID {
			s.products[i] = *updated
		}
	}
	for i := range s.lists {
		if items, changed := shopping.RefreshSnapshot(s.lists[i], *updated); changed {
			s.lists[i].Items = items
		}
	}
	s.err = nil
	s.mu.Unlock()

	out := *updated
	return &out, nil
}

// DeleteProduct deletes a product remotely, which also strips it from every
// list, and mirrors that cascade locally.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	done := s.begin()
	defer done()

	if err := s.gateway.DeleteProduct(ctx, owner, productID); err != nil {
		return s.fail("delete product", err)
	}

	s.mu.Lock()
	products := s.products[:0]
	for _, p := range s.products {
		if p.ID != productID {
			products = append(products, p)
		}
	}
	s.products = products
	for i := range s.lists {
		s.lists[i].Items = shopping.RemoveProduct(s.lists[i], productID)
	}
	s.err = nil
	s.mu.Unlock()
	return nil
}

// AddShoppingList creates a list and keeps the mirror ordered newest first.
func (s *Store) AddShoppingList(ctx context.Context, name string, items []shopping.Item) (*shopping.ShoppingList, error) {
	owner, err := s.owner()
	if err != nil {
		return nil, err
	}

	done := s.begin()
	defer done()

	l, err := s.gateway.CreateShoppingList(ctx, owner, name, items)
	if err != nil {
		return nil, s.fail("add shopping list", err)
	}

	s.mu.Lock()
	s.lists = append(s.lists, l.Clone())
	shopping.SortNewestFirst(s.lists)
	s.err = nil
	s.mu.Unlock()

	out := l.Clone()
	return &out, nil
}

// UpdateShoppingList writes the whole list and replaces it in the mirror.
func (s *Store) UpdateShoppingList(ctx context.Context, l shopping.ShoppingList) (*shopping.ShoppingList, error) {
	owner, err := s.owner()
	if err != nil {
		return nil, err
	}

	done := s.begin()
	defer done()

	updated, err := s.gateway.UpdateShoppingList(ctx, owner, l)
	if err != nil {
		return nil, s.fail("update shopping list", err)
	}

	s.mu.Lock()
	for i := range s.lists {
		if s.lists[i].ID == updated.ID {
			s.lists[i] = updated.Clone()
		}
	}
	s.err = nil
	s.mu.Unlock()

	out := updated.Clone()
	return &out, nil
}

// DeleteShoppingList deletes a list and drops it from the mirror.
func (s *Store) DeleteShoppingList(ctx context.Context, listID string) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}

	done := s.begin()
	defer done()

	if err := s.gateway.DeleteShoppingList(ctx, owner, listID); err != nil {
		return s.fail("delete shopping list", err)
	}

	s.mu.Lock()
	lists := s.lists[:0]
	for _, l := range s.lists {
		if l.ID != listID {
			lists = append(lists, l)
		}
	}
	s.lists = lists
	s.err = nil
	s.mu.Unlock()
	return nil
}

// AddProductToShoppingList adds qty units of a product to a list, merging
// into the existing item when the product is already there.
func (s *Store) AddProductToShoppingList(ctx context.Context, listID, productID string, qty int) (*shopping.ShoppingList, error) {
	return s.editItems(ctx, "add product to shopping list", listID, func(l shopping.ShoppingList) ([]shopping.Item, error) {
		p, ok := s.Product(productID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return shopping.AddProduct(l, p, qty)
	})
}

// UpdateShoppingListItem merges upd into one item of a list.
func (s *Store) UpdateShoppingListItem(ctx context.Context, listID, productID string, upd shopping.ItemUpdate) (*shopping.ShoppingList, error) {
	return s.editItems(ctx, "update shopping list item", listID, func(l shopping.ShoppingList) ([]shopping.Item, error) {
		return shopping.UpdateItem(l, productID, upd)
	})
}

// RemoveProductFromShoppingList removes a product's item from a list.
func (s *Store) RemoveProductFromShoppingList(ctx context.Context, listID, productID string) (*shopping.ShoppingList, error) {
	return s.editItems(ctx, "remove product from shopping list", listID, func(l shopping.ShoppingList) ([]shopping.Item, error) {
		return shopping.RemoveProduct(l, productID), nil
	})
}

// TogglePurchaseItem flips the purchased flag of one item of a list.
func (s *Store) TogglePurchaseItem(ctx context.Context, listID, productID string) (*shopping.ShoppingList, error) {
	return s.editItems(ctx, "toggle purchase item", listID, func(l shopping.ShoppingList) ([]shopping.Item, error) {
		return shopping.TogglePurchased(l, productID)
	})
}

// editItems computes a list's new items from the mirror and writes the whole list.
func (s *Store) editItems(ctx context.Context, op, listID string, edit func(shopping.ShoppingList) ([]shopping.Item, error)) (*shopping.ShoppingList, error) {
	if _, err := s.owner(); err != nil {
		return nil, err
	}

	l, ok := s.ShoppingList(listID)
	if !ok {
		return nil, s.fail(op, fmt.Errorf("%w: %s", ErrListNotFound, listID))
	}
	items, err := edit(l)
	if err != nil {
		return nil, s.fail(op, err)
	}
	l.Items = items
	return s.UpdateShoppingList(ctx, l)
}

// Products returns a copy of the cached products in insertion order.
func (s *Store) Products() []shopping.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shopping.Product, len(s.products))
	copy(out, s.products)
	return out
}

// ShoppingLists returns a copy of the cached lists, newest first.
func (s *Store) ShoppingLists() []shopping.ShoppingList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shopping.ShoppingList, len(s.lists))
	for i, l := range s.lists {
		out[i] = l.Clone()
	}
	return out
}

// Product returns a cached product.
func (s *Store) Product(id string) (shopping.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return shopping.Product{}, false
}

// ShoppingList returns a cached list.
func (s *Store) ShoppingList(id string) (shopping.ShoppingList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lists {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return shopping.ShoppingList{}, false
}

// Progress returns the purchase progress of a cached list.
func (s *Store) Progress(listID string) (shopping.Progress, bool) {
	l, ok := s.ShoppingList(listID)
	if !ok {
		return shopping.Progress{}, false
	}
	return shopping.ListProgress(l), true
}

// Loading reports whether any gateway call is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Err returns the error of the last failed operation, or nil if the last
// operation succeeded.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClearError dismisses the current error.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// Loaded reports whether the mirror holds the result of a successful refresh.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) owner() (string, error) {
	owner := s.identity.UserID()
	if owner == "" {
		s.mu.Lock()
		s.err = ErrNotAuthenticated
		s.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	return owner, nil
}

func (s *Store) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

func (s *Store) fail(op string, err error) error {
	s.logFailure(op, err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

type fieldLogger interface {
	LogFields() logrus.Fields
}

func (s *Store) logFailure(op string, err error) {
	entry := s.log.WithField("operation", op).WithError(err)
	var fl fieldLogger
	if errors.As(err, &fl) {
		entry = entry.WithFields(fl.LogFields())
	}
	entry.Error("Data operation failed")
}

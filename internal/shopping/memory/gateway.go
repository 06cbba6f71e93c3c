package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"smart-shopping-list/internal/shopping"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithIDGenerator replaces the default ULID generator.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) { g.newID = fn }
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(fn func() time.Time) Option {
	return func(g *Gateway) { g.now = fn }
}

// Gateway is an in-process shopping.Gateway with the same owner scoping,
// ordering and cascade semantics as the hosted backend.
type Gateway struct {
	mu       sync.RWMutex
	products map[string]shopping.Product
	lists    map[string]shopping.ShoppingList
	last     time.Time

	newID func() string
	now   func() time.Time
}

var _ shopping.Gateway = (*Gateway)(nil)

// NewGateway creates an empty in-memory gateway.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		products: make(map[string]shopping.Product),
		lists:    make(map[string]shopping.ShoppingList),
		newID:    func() string { return ulid.Make().String() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// timestamp returns a creation time strictly after the previous one so that
// newest-first ordering is total. Caller holds the write lock.
func (g *Gateway) timestamp() time.Time {
	ts := g.now().UTC()
	if !ts.After(g.last) {
		ts = g.last.Add(time.Microsecond)
	}
	g.last = ts
	return ts
}

func (g *Gateway) ListProducts(ctx context.Context, ownerID string) ([]shopping.Product, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]shopping.Product, 0)
	for _, p := range g.products {
		if p.UserID == ownerID {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return out, nil
}

func (g *Gateway) CreateProduct(ctx context.Context, ownerID string, in shopping.ProductInput) (*shopping.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	p := shopping.Product{
		ID:          g.newID(),
		UserID:      ownerID,
		Name:        in.Name,
		Description: in.Description,
		ImageBase64: in.ImageBase64,
		CreatedAt:   g.timestamp(),
	}
	g.products[p.ID] = p
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{"product_id": p.ID, "user_id": ownerID}).Debug("Product created")
	return &p, nil
}

func (g *Gateway) UpdateProduct(ctx context.Context, ownerID string, p shopping.Product) (*shopping.Product, error) {
	in := p.Input()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.products[p.ID]
	if !ok || cur.UserID != ownerID {
		return nil, fmt.Errorf("product %s: %w", p.ID, shopping.ErrNotFound)
	}
	cur.Name = in.Name
	cur.Description = in.Description
	cur.ImageBase64 = in.ImageBase64
	g.products[p.ID] = cur
	return &cur, nil
}

// DeleteProduct removes the product and, under the same lock, every item
// referencing it in the owner's lists. Deleting an unknown product is a no-op,
// like the backend's delete function.
func (g *Gateway) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.products[productID]
	if !ok || cur.UserID != ownerID {
		return nil
	}
	delete(g.products, productID)

	for id, l := range g.lists {
		if l.UserID != ownerID {
			continue
		}
		l.Items = shopping.RemoveProduct(l, productID)
		g.lists[id] = l
	}
	return nil
}

func (g *Gateway) ListShoppingLists(ctx context.Context, ownerID string) ([]shopping.ShoppingList, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]shopping.ShoppingList, 0)
	for _, l := range g.lists {
		if l.UserID == ownerID {
			out = append(out, l.Clone())
		}
	}
	shopping.SortNewestFirst(out)
	return out, nil
}

func (g *Gateway) CreateShoppingList(ctx context.Context, ownerID, name string, items []shopping.Item) (*shopping.ShoppingList, error) {
	name, err := shopping.ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := shopping.ValidateItems(items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []shopping.Item{}
	}

	g.mu.Lock()
	l := shopping.ShoppingList{
		ID:        g.newID(),
		UserID:    ownerID,
		Name:      name,
		CreatedAt: g.timestamp(),
		Items:     items,
	}
	l = l.Clone()
	g.lists[l.ID] = l
	g.mu.Unlock()

	out := l.Clone()
	return &out, nil
}

func (g *Gateway) UpdateShoppingList(ctx context.Context, ownerID string, l shopping.ShoppingList) (*shopping.ShoppingList, error) {
	name, err := shopping.ValidateName(l.Name)
	if err != nil {
		return nil, err
	}
	if err := shopping.ValidateItems(l.Items); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.lists[l.ID]
	if !ok || cur.UserID != ownerID {
		return nil, fmt.Errorf("shopping list %s: %w", l.ID, shopping.ErrNotFound)
	}
	cur.Name = name
	cur.Items = l.Clone().Items
	g.lists[l.ID] = cur

	out := cur.Clone()
	return &out, nil
}

func (g *Gateway) DeleteShoppingList(ctx context.Context, ownerID, listID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.lists[listID]
	if ok && cur.UserID == ownerID {
		delete(g.lists, listID)
	}
	return nil
}

func sortProducts(ps []shopping.Product) {
	sort.Slice(ps, func(i, j int) bool {
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

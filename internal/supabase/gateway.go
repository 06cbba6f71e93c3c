package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"smart-shopping-list/internal/shopping"

	"github.com/google/uuid"
)

const (
	tableProducts      = "products"
	tableShoppingLists = "shopping_lists"
	rpcDeleteProduct   = "handle_delete_product"
)

// ErrInvalidID is returned for ids that cannot be backend row or user ids.
var ErrInvalidID = errors.New("invalid id")

// TokenSource supplies the signed-in user's access token for row-level security.
type TokenSource interface {
	AccessToken() string
}

// Gateway is the shopping.Gateway backed by the Supabase REST API.
type Gateway struct {
	client *Client
	tokens TokenSource
}

var _ shopping.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway that authenticates as the user behind tokens.
func NewGateway(client *Client, tokens TokenSource) *Gateway {
	return &Gateway{client: client, tokens: tokens}
}

type productRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ImageBase64 *string   `json:"imageBase64"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r productRow) toProduct() shopping.Product {
	p := shopping.Product{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.ImageBase64 != nil {
		p.ImageBase64 = *r.ImageBase64
	}
	return p
}

// productWrite is the insert/update payload; empty optional fields are sent as null.
type productWrite struct {
	UserID      string  `json:"user_id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ImageBase64 *string `json:"imageBase64"`
}

func newProductWrite(in shopping.ProductInput) productWrite {
	return productWrite{
		Name:        in.Name,
		Description: nullable(in.Description),
		ImageBase64: nullable(in.ImageBase64),
	}
}

type listRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Items     []shopping.Item `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r listRow) toList() shopping.ShoppingList {
	items := r.Items
	if items == nil {
		items = []shopping.Item{}
	}
	return shopping.ShoppingList{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		Items:     items,
	}
}

type listWrite struct {
	UserID string          `json:"user_id,omitempty"`
	Name   string          `json:"name"`
	Items  []shopping.Item `json:"items"`
}

// ListProducts returns the owner's products, newest first.
func (g *Gateway) ListProducts(ctx context.Context, ownerID string) ([]shopping.Product, error) {
	if err := validateIDs(ownerID); err != nil {
		return nil, err
	}

	var rows []productRow
	err := g.client.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(tableProducts),
		query:  ownerQuery(ownerID, "", true),
		token:  g.token(),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]shopping.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toProduct())
	}
	return products, nil
}

// CreateProduct inserts a product owned by ownerID.
func (g *Gateway) CreateProduct(ctx context.Context, ownerID string, in shopping.ProductInput) (*shopping.Product, error) {
	if err := validateIDs(ownerID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payload := newProductWrite(in)
	payload.UserID = ownerID

	var rows []productRow
	err := g.client.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(tableProducts),
		body:   []productWrite{payload},
		token:  g.token(),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to add product: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to add product: no data returned")
	}

	p := rows[0].toProduct()
	return &p, nil
}

// UpdateProduct replaces name, description and image of the product matched
// by id and owner. Ownership and creation time are never sent.
func (g *Gateway) UpdateProduct(ctx context.Context, ownerID string, p shopping.Product) (*shopping.Product, error) {
	if err := validateIDs(ownerID, p.ID); err != nil {
		return nil, err
	}
	in := p.Input()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var rows []productRow
	err := g.client.do(ctx, request{
		method: http.MethodPatch,
		path:   tablePath(tableProducts),
		query:  ownerQuery(ownerID, p.ID, false),
		body:   newProductWrite(in),
		token:  g.token(),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to update product %s: %w", p.ID, shopping.ErrNotFound)
	}

	updated := rows[0].toProduct()
	return &updated, nil
}

// DeleteProduct calls the server-side function that deletes the product and
// strips it from every shopping list in a single transaction.
func (g *Gateway) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	if err := validateIDs(ownerID, productID); err != nil {
		return err
	}

	err := g.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + rpcDeleteProduct,
		body:   map[string]string{"product_id_to_delete": productID},
		token:  g.token(),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// ListShoppingLists returns the owner's lists, newest first.
func (g *Gateway) ListShoppingLists(ctx context.Context, ownerID string) ([]shopping.ShoppingList, error) {
	if err := validateIDs(ownerID); err != nil {
		return nil, err
	}

	var rows []listRow
	err := g.client.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(tableShoppingLists),
		query:  ownerQuery(ownerID, "", true),
		token:  g.token(),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping lists: %w", err)
	}

	lists := make([]shopping.ShoppingList, 0, len(rows))
	for _, r := range rows {
		lists = append(lists, r.toList())
	}
	return lists, nil
}

// CreateShoppingList inserts a list; nil items are stored as an empty array.
func (g *Gateway) CreateShoppingList(ctx context.Context, ownerID, name string, items []shopping.Item) (*shopping.ShoppingList, error) {
	if err := validateIDs(ownerID); err != nil {
		return nil, err
	}
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

	var rows []listRow
	err = g.client.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(tableShoppingLists),
		body:   []listWrite{{UserID: ownerID, Name: name, Items: items}},
		token:  g.token(),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to add shopping list: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to add shopping list: no data returned")
	}

	l := rows[0].toList()
	return &l, nil
}

// UpdateShoppingList writes the list's name and whole item array.
func (g *Gateway) UpdateShoppingList(ctx context.Context, ownerID string, l shopping.ShoppingList) (*shopping.ShoppingList, error) {
	if err := validateIDs(ownerID, l.ID); err != nil {
		return nil, err
	}
	name, err := shopping.ValidateName(l.Name)
	if err != nil {
		return nil, err
	}
	if err := shopping.ValidateItems(l.Items); err != nil {
		return nil, err
	}
	items := l.Items
	if items == nil {
		items = []shopping.Item{}
	}

	var rows []listRow
	err = g.client.do(ctx, request{
		method: http.MethodPatch,
		path:   tablePath(tableShoppingLists),
		query:  ownerQuery(ownerID, l.ID, false),
		body:   listWrite{Name: name, Items: items},
		token:  g.token(),
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to update shopping list: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to update shopping list %s: %w", l.ID, shopping.ErrNotFound)
	}

	updated := rows[0].toList()
	return &updated, nil
}

// DeleteShoppingList deletes the list matched by id and owner.
func (g *Gateway) DeleteShoppingList(ctx context.Context, ownerID, listID string) error {
	if err := validateIDs(ownerID, listID); err != nil {
		return err
	}

	err := g.client.do(ctx, request{
		method: http.MethodDelete,
		path:   tablePath(tableShoppingLists),
		query:  ownerQuery(ownerID, listID, false),
		token:  g.token(),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete shopping list: %w", err)
	}
	return nil
}

func (g *Gateway) token() string {
	if g.tokens == nil {
		return ""
	}
	return g.tokens.AccessToken()
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

// ownerQuery builds the PostgREST filter for the owner's rows, optionally
// narrowed to one id and ordered newest first.
func ownerQuery(ownerID, id string, ordered bool) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+ownerID)
	if id != "" {
		q.Set("id", "eq."+id)
	}
	if ordered {
		q.Set("select", "*")
		q.Set("order", "created_at.desc")
	}
	return q
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

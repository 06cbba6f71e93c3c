package shopping

import "context"

// Gateway issues reads and writes against the remote products and
// shopping_lists collections. Every call is scoped to ownerID.
type Gateway interface {
	// ListProducts returns the owner's products, newest first.
	ListProducts(ctx context.Context, ownerID string) ([]Product, error)
	// CreateProduct persists a product and returns it with its backend id and timestamp.
	CreateProduct(ctx context.Context, ownerID string, in ProductInput) (*Product, error)
	// UpdateProduct replaces the mutable fields of the product matched by id and owner.
	UpdateProduct(ctx context.Context, ownerID string, p Product) (*Product, error)
	// DeleteProduct removes the product and its items from every list in one step.
	DeleteProduct(ctx context.Context, ownerID, productID string) error

	// ListShoppingLists returns the owner's lists, newest first.
	ListShoppingLists(ctx context.Context, ownerID string) ([]ShoppingList, error)
	CreateShoppingList(ctx context.Context, ownerID, name string, items []Item) (*ShoppingList, error)
	// UpdateShoppingList replaces the name and the whole item sequence of a list.
	UpdateShoppingList(ctx context.Context, ownerID string, l ShoppingList) (*ShoppingList, error)
	DeleteShoppingList(ctx context.Context, ownerID, listID string) error
}

package app

import (
	"context"

	"smart-shopping-list/internal/shopping"
)

// offlineGateway stands in for the remote gateway when no backend client
// could be built. Nobody can sign in then, so the store never reaches it.
type offlineGateway struct {
	reason error
}

func (g offlineGateway) ListProducts(context.Context, string) ([]shopping.Product, error) {
	return nil, g.reason
}

func (g offlineGateway) CreateProduct(context.Context, string, shopping.ProductInput) (*shopping.Product, error) {
	return nil, g.reason
}

func (g offlineGateway) UpdateProduct(context.Context, string, shopping.Product) (*shopping.Product, error) {
	return nil, g.reason
}

func (g offlineGateway) DeleteProduct(context.Context, string, string) error {
	return g.reason
}

func (g offlineGateway) ListShoppingLists(context.Context, string) ([]shopping.ShoppingList, error) {
	return nil, g.reason
}

func (g offlineGateway) CreateShoppingList(context.Context, string, string, []shopping.Item) (*shopping.ShoppingList, error) {
	return nil, g.reason
}

func (g offlineGateway) UpdateShoppingList(context.Context, string, shopping.ShoppingList) (*shopping.ShoppingList, error) {
	return nil, g.reason
}

func (g offlineGateway) DeleteShoppingList(context.Context, string, string) error {
	return g.reason
}

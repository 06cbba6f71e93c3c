package shopping

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a write matched no row for the owner.
	ErrNotFound = errors.New("record not found for user")
	// ErrEmptyName is returned when a product or list name is blank.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrItemNotFound is returned when a list has no item for a product.
	ErrItemNotFound = errors.New("product is not in the shopping list")
	// ErrDuplicateItem is returned when a list holds two items for one product.
	ErrDuplicateItem = errors.New("product appears more than once in the shopping list")
)

// Product is an entry of the user's personal catalog.
type Product struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageBase64 string    `json:"imageBase64,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductInput holds the user-editable fields of a product.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

// Input returns the editable part of the product.
func (p Product) Input() ProductInput {
	return ProductInput{
		Name:        p.Name,
		Description: p.Description,
		ImageBase64: p.ImageBase64,
	}
}

// Validate trims the name and checks that it is not empty.
func (in *ProductInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// Item is a product entry embedded in a shopping list. ProductName and
// ProductImageBase64 are a snapshot of the product taken when the item was added.
type Item struct {
	ProductID          string `json:"productId"`
	ProductName        string `json:"productName"`
	ProductImageBase64 string `json:"productImageBase64,omitempty"`
	Quantity           int    `json:"quantity"`
	IsPurchased        bool   `json:"isPurchased"`
}

// ShoppingList is a named, ordered collection of items.
type ShoppingList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

// Clone returns a copy of the list that shares no item storage with l.
func (l ShoppingList) Clone() ShoppingList {
	c := l
	c.Items = make([]Item, len(l.Items))
	copy(c.Items, l.Items)
	return c
}

// Item returns the item for productID, if present.
func (l ShoppingList) Item(productID string) (Item, bool) {
	for _, it := range l.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// ValidateItems checks that every item has a positive quantity and that no
// product appears twice.
func ValidateItems(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %s: %w", it.ProductID, ErrInvalidQuantity)
		}
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("item %s: %w", it.ProductID, ErrDuplicateItem)
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

// ValidateName trims a list name and checks that it is not empty.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

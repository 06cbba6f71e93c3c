package shopping

import (
	"math"
	"sort"
)

// ItemUpdate lists the item fields a caller may change. Nil fields are left as is.
type ItemUpdate struct {
	Quantity    *int  `json:"quantity,omitempty"`
	IsPurchased *bool `json:"isPurchased,omitempty"`
}

// Progress summarizes how much of a list has been purchased.
type Progress struct {
	Purchased int     `json:"purchased"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// AddProduct returns the list items after adding qty units of product.
// An existing item for the product has its quantity increased; otherwise a new
// pending item is appended with a snapshot of the product's name and image.
func AddProduct(list ShoppingList, product Product, qty int) ([]Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	items := make([]Item, 0, len(list.Items)+1)
	found := false
	for _, it := range list.Items {
		if it.ProductID == product.ID {
			if it.Quantity > math.MaxInt-qty {
				return nil, ErrInvalidQuantity
			}
			it.Quantity += qty
			found = true
		}
		items = append(items, it)
	}
	if !found {
		items = append(items, Item{
			ProductID:          product.ID,
			ProductName:        product.Name,
			ProductImageBase64: product.ImageBase64,
			Quantity:           qty,
			IsPurchased:        false,
		})
	}
	return items, nil
}

// UpdateItem merges upd into the item for productID.
func UpdateItem(list ShoppingList, productID string, upd ItemUpdate) ([]Item, error) {
	if upd.Quantity != nil && *upd.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	items, ok := mapItem(list.Items, productID, func(it Item) Item {
		if upd.Quantity != nil {
			it.Quantity = *upd.Quantity
		}
		if upd.IsPurchased != nil {
			it.IsPurchased = *upd.IsPurchased
		}
		return it
	})
	if !ok {
		return nil, ErrItemNotFound
	}
	return items, nil
}

// TogglePurchased flips the purchased flag of the item for productID.
func TogglePurchased(list ShoppingList, productID string) ([]Item, error) {
	items, ok := mapItem(list.Items, productID, func(it Item) Item {
		it.IsPurchased = !it.IsPurchased
		return it
	})
	if !ok {
		return nil, ErrItemNotFound
	}
	return items, nil
}

// RemoveProduct returns the list items without the item for productID.
// Removing a product that is not in the list is not an error.
func RemoveProduct(list ShoppingList, productID string) []Item {
	items := make([]Item, 0, len(list.Items))
	for _, it := range list.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	return items
}

// RefreshSnapshot rewrites the name and image snapshot of every item that
// references product. It reports whether any item changed.
func RefreshSnapshot(list ShoppingList, product Product) ([]Item, bool) {
	changed := false
	items := make([]Item, len(list.Items))
	for i, it := range list.Items {
		if it.ProductID == product.ID {
			it.ProductName = product.Name
			it.ProductImageBase64 = product.ImageBase64
			changed = true
		}
		items[i] = it
	}
	return items, changed
}

// ListProgress computes the purchased ratio of a list. An empty list is 0%.
func ListProgress(list ShoppingList) Progress {
	p := Progress{Total: len(list.Items)}
	for _, it := range list.Items {
		if it.IsPurchased {
			p.Purchased++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Purchased) / float64(p.Total) * 100
	}
	return p
}

// SortNewestFirst orders lists by creation time, newest first.
func SortNewestFirst(lists []ShoppingList) {
	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].CreatedAt.After(lists[j].CreatedAt)
	})
}

func mapItem(items []Item, productID string, fn func(Item) Item) ([]Item, bool) {
	out := make([]Item, len(items))
	found := false
	for i, it := range items {
		if it.ProductID == productID {
			it = fn(it)
			found = true
		}
		out[i] = it
	}
	return out, found
}

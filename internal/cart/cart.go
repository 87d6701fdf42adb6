// Package cart holds the shopper's selection of stock leaves. A Cart is a value: every
// operation returns the next cart and leaves the receiver unchanged.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrOutOfStock        = errors.New("out of stock")
	ErrExceedsStock      = errors.New("quantity exceeds available stock")
	ErrItemNotFound      = errors.New("item not in cart")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrSelectionRequired = errors.New("color and size selection required")
)

// Key identifies one cart entry.
type Key struct {
	ProductID string
	Color     string
	Size      string
}

// Item is one cart entry with the price and tax snapshot taken when it was selected.
type Item struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Color     string      `json:"color,omitempty"`
	Size      string      `json:"size,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice float64     `json:"unitPrice"`
	GST       pricing.GST `json:"gst"`
	ImageRef  string      `json:"image,omitempty"`
}

func (i Item) Key() Key { return Key{ProductID: i.ProductID, Color: i.Color, Size: i.Size} }

func (i Item) Leaf() inventory.Leaf {
	return inventory.Leaf{ProductID: i.ProductID, Color: i.Color, Size: i.Size}
}

// LineItem freezes the entry into an order line.
func (i Item) LineItem() orders.LineItem {
	amounts := pricing.Line(pricing.LineInput{UnitPrice: i.UnitPrice, Quantity: i.Quantity, GST: i.GST})
	return orders.LineItem{
		ProductID: i.ProductID,
		Name:      i.Name,
		Color:     i.Color,
		Size:      i.Size,
		Quantity:  i.Quantity,
		UnitPrice: i.UnitPrice,
		GST:       i.GST,
		LineTotal: amounts.Total,
		Image:     i.ImageRef,
	}
}

// Cart is an ordered set of items, at most one per Key.
type Cart struct {
	items []Item
}

func (c Cart) index(k Key) int {
	for i, it := range c.items {
		if it.Key() == k {
			return i
		}
	}
	return -1
}

func (c Cart) with(items []Item) Cart { return Cart{items: items} }

func (c Cart) copyItems() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Add merges item into the cart. The resulting quantity is capped at available, the stock
// observed for the item's leaf.
func (c Cart) Add(item Item, available int) (Cart, error) {
	if item.Quantity < 1 {
		return c, ErrInvalidQuantity
	}
	if available <= 0 {
		return c, ErrOutOfStock
	}
	items := c.copyItems()
	if i := c.index(item.Key()); i >= 0 {
		items[i].Quantity = min(items[i].Quantity+item.Quantity, available)
		return c.with(items), nil
	}
	item.Quantity = min(item.Quantity, available)
	return c.with(append(items, item)), nil
}

// SetQuantity replaces the quantity of an existing entry, capped at available.
func (c Cart) SetQuantity(k Key, qty, available int) (Cart, error) {
	if qty < 1 {
		return c, ErrInvalidQuantity
	}
	i := c.index(k)
	if i < 0 {
		return c, ErrItemNotFound
	}
	if available <= 0 {
		return c, ErrOutOfStock
	}
	items := c.copyItems()
	items[i].Quantity = min(qty, available)
	return c.with(items), nil
}

// Remove drops an entry. Removing an absent key is a no-op.
func (c Cart) Remove(k Key) Cart {
	i := c.index(k)
	if i < 0 {
		return c
	}
	items := make([]Item, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return c.with(items)
}

func (c Cart) Clear() Cart { return Cart{} }

func (c Cart) Len() int { return len(c.items) }

// Items returns a copy of the entries in insertion order.
func (c Cart) Items() []Item { return c.copyItems() }

// Lines returns the pricing inputs for every entry.
func (c Cart) Lines() []pricing.LineInput {
	out := make([]pricing.LineInput, len(c.items))
	for i, it := range c.items {
		out[i] = pricing.LineInput{UnitPrice: it.UnitPrice, Quantity: it.Quantity, GST: it.GST}
	}
	return out
}

// Totals prices the cart.
func (c Cart) Totals() pricing.Totals { return pricing.Summarize(c.Lines()) }

// LineItems freezes every entry into order lines.
func (c Cart) LineItems() []orders.LineItem {
	out := make([]orders.LineItem, len(c.items))
	for i, it := range c.items {
		out[i] = it.LineItem()
	}
	return out
}

// Decrements lists the stock reductions the cart would make.
func (c Cart) Decrements() []inventory.Decrement {
	out := make([]inventory.Decrement, len(c.items))
	for i, it := range c.items {
		out[i] = inventory.Decrement{Leaf: it.Leaf(), Quantity: it.Quantity}
	}
	return out
}

// Line is a requested selection before it is priced.
type Line struct {
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// FromSnapshot prices lines against current product snapshots. Unlike Add it never caps: a
// line whose total quantity exceeds the leaf's stock fails with a *validation.LineError.
// Products missing from the map, or hidden from the storefront, are unknown.
func FromSnapshot(lines []Line, products map[string]*inventory.Product) (Cart, error) {
	var c Cart
	for i, l := range lines {
		lineErr := func(err error, requested, available int) error {
			return &validation.LineError{
				Index: i, ProductID: l.ProductID, Color: l.Color, Size: l.Size,
				Requested: requested, Available: available, Err: err,
			}
		}
		if l.Quantity < 1 {
			return Cart{}, lineErr(ErrInvalidQuantity, l.Quantity, 0)
		}
		p := products[l.ProductID]
		if p == nil || !p.ShowProduct {
			return Cart{}, lineErr(ErrUnknownProduct, l.Quantity, 0)
		}
		leaf, err := resolve(*p, l)
		if err != nil {
			return Cart{}, lineErr(err, l.Quantity, 0)
		}
		available, _ := leaf.Quantity(*p)

		item := Item{
			ProductID: p.ID,
			Name:      p.Name,
			Color:     leaf.Color,
			Size:      leaf.Size,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			GST:       p.Rates(),
			ImageRef:  p.ImageFor(leaf.Color),
		}
		requested := l.Quantity
		if j := c.index(item.Key()); j >= 0 {
			requested += c.items[j].Quantity
		}
		if available <= 0 {
			return Cart{}, lineErr(ErrOutOfStock, requested, available)
		}
		if requested > available {
			return Cart{}, lineErr(ErrExceedsStock, requested, available)
		}
		c, _ = c.Add(item, available)
	}
	return c, nil
}

// resolve maps a selection onto the product's stock model.
func resolve(p inventory.Product, l Line) (inventory.Leaf, error) {
	leaf := inventory.Leaf{ProductID: p.ID}
	switch p.StockModel() {
	case inventory.FlatStock:
		if l.Color != "" || l.Size != "" {
			return leaf, fmt.Errorf("%w: %s has no variants", inventory.ErrLeafNotFound, p.ID)
		}
		if p.Stock == nil {
			return leaf, fmt.Errorf("%w: %s has no stock counter", inventory.ErrLeafNotFound, p.ID)
		}
		return leaf, nil
	case inventory.SizedVariants:
		color := strings.TrimSpace(l.Color)
		if color == "" {
			return leaf, ErrSelectionRequired
		}
		v, ok := p.Variants[color]
		if !ok {
			return leaf, fmt.Errorf("%w: color %q", inventory.ErrVariantNotFound, color)
		}
		leaf.Color = color
		switch v.Model() {
		case inventory.LegacyColor:
			if l.Size != "" {
				return leaf, fmt.Errorf("%w: %s/%s is not sized", inventory.ErrLeafNotFound, p.ID, color)
			}
			return leaf, nil
		case inventory.SizedColor:
			if l.Size == "" {
				return leaf, ErrSelectionRequired
			}
			if _, ok := v.Sizes[l.Size]; !ok {
				return leaf, fmt.Errorf("%w: size %q", inventory.ErrLeafNotFound, l.Size)
			}
			leaf.Size = l.Size
			return leaf, nil
		}
	}
	return leaf, inventory.ErrWrongStockModel
}

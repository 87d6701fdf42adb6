package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// StockModel tells how a product stores its stock.
type StockModel int

const (
	// FlatStock products carry a single stock counter and product-level images.
	FlatStock StockModel = iota + 1
	// SizedVariants products carry a color -> Variant map.
	SizedVariants
)

// VariantModel tells how a color variant stores its stock.
type VariantModel int

const (
	// LegacyColor variants carry one stock counter for the color.
	LegacyColor VariantModel = iota + 1
	// SizedColor variants carry a size -> quantity map.
	SizedColor
)

// DefaultSizes are the sizes created with a new sized color.
var DefaultSizes = []string{"S", "M", "L", "XL"}

// Variant is a color of a product.
type Variant struct {
	Images []string       `json:"images" dynamodbav:"images"`
	Stock  *int           `json:"stock,omitempty" dynamodbav:"stock,omitempty"`
	Sizes  map[string]int `json:"sizes,omitempty" dynamodbav:"sizes,omitempty"`
}

// Model classifies the variant. Presence of the sizes map wins.
func (v Variant) Model() VariantModel {
	if v.Sizes != nil {
		return SizedColor
	}
	return LegacyColor
}

// Product is the item stored in the products table.
type Product struct {
	ID          string             `json:"id" dynamodbav:"product_id"` // PK
	Name        string             `json:"name" dynamodbav:"name"`
	Price       float64            `json:"price" dynamodbav:"price"`
	Category    string             `json:"category" dynamodbav:"category"`
	Featured    bool               `json:"featured" dynamodbav:"featured"`
	HasColors   bool               `json:"hasColors" dynamodbav:"has_colors"`
	ShowProduct bool               `json:"showProduct" dynamodbav:"show_product"`
	GST         *pricing.GST       `json:"gst,omitempty" dynamodbav:"gst,omitempty"`
	GSM         *int               `json:"gsm,omitempty" dynamodbav:"gsm,omitempty"`
	Description string             `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Images      []string           `json:"images,omitempty" dynamodbav:"images,omitempty"`
	Stock       *int               `json:"stock,omitempty" dynamodbav:"stock,omitempty"`
	Variants    map[string]Variant `json:"variants,omitempty" dynamodbav:"variants,omitempty"`
	Version     int64              `json:"version" dynamodbav:"version"`
	CreatedAt   time.Time          `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" dynamodbav:"updated_at"`
}

// StockModel classifies the product. Presence of the variants map wins.
func (p Product) StockModel() StockModel {
	if p.Variants != nil {
		return SizedVariants
	}
	return FlatStock
}

// Rates returns the tax rates that apply to the product.
func (p Product) Rates() pricing.GST {
	return pricing.RatesFor(p.GST, p.Category)
}

// ImageFor returns the first image shown for a color, falling back to product images.
func (p Product) ImageFor(color string) string {
	if v, ok := p.Variants[color]; ok && len(v.Images) > 0 {
		return v.Images[0]
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// Leaf addresses one stock counter: the product's flat stock (no color), a legacy color's stock
// (color, no size) or a sized color's quantity (color and size).
type Leaf struct {
	ProductID string `json:"productId"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

func (l Leaf) String() string {
	switch {
	case l.Color == "":
		return l.ProductID
	case l.Size == "":
		return l.ProductID + "/" + l.Color
	default:
		return l.ProductID + "/" + l.Color + "/" + l.Size
	}
}

// Path is the leaf's document path inside its product: stock, variants.<c>.stock or
// variants.<c>.sizes.<s>.
func (l Leaf) Path() string {
	switch {
	case l.Color == "":
		return "stock"
	case l.Size == "":
		return "variants." + l.Color + ".stock"
	default:
		return "variants." + l.Color + ".sizes." + l.Size
	}
}

// Quantity reads the leaf's counter from a product snapshot. ok is false when the product
// does not have that leaf under its stock model.
func (l Leaf) Quantity(p Product) (qty int, ok bool) {
	switch p.StockModel() {
	case FlatStock:
		if l.Color != "" || p.Stock == nil {
			return 0, false
		}
		return *p.Stock, true
	case SizedVariants:
		v, found := p.Variants[l.Color]
		if l.Color == "" || !found {
			return 0, false
		}
		switch v.Model() {
		case LegacyColor:
			if l.Size != "" || v.Stock == nil {
				return 0, false
			}
			return *v.Stock, true
		case SizedColor:
			q, found := v.Sizes[l.Size]
			return q, found
		}
	}
	return 0, false
}

// Decrement is a requested reduction of one leaf.
type Decrement struct {
	Leaf     Leaf
	Quantity int
}

var (
	ErrNotFound               = errors.New("product not found")
	ErrVariantExists          = errors.New("variant already exists")
	ErrVariantNotFound        = errors.New("variant not found")
	ErrSizeExists             = errors.New("size already exists")
	ErrWrongStockModel        = errors.New("operation does not match the product's stock model")
	ErrLeafNotFound           = errors.New("stock leaf not found")
	ErrImagesRequired         = errors.New("at least one image is required")
	ErrInvalidQuantity        = errors.New("quantity must be positive")
	ErrConcurrentModification = errors.New("product changed concurrently, retry")
	ErrInsufficientStock      = errors.New("insufficient stock")
)

// InsufficientStockError reports a leaf that cannot cover a requested quantity.
type InsufficientStockError struct {
	Leaf      Leaf
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Leaf, e.Available, e.Requested)
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockShortage groups every short leaf found while finalizing an order.
type StockShortage struct {
	Lines []InsufficientStockError
}

func (e *StockShortage) Error() string {
	if len(e.Lines) == 1 {
		return e.Lines[0].Error()
	}
	return fmt.Sprintf("insufficient stock for %d lines", len(e.Lines))
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *StockShortage) Is(target error) bool {
	return target == ErrInsufficientStock
}

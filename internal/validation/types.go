package validation

import (
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// LineRequest selects a quantity of one stock leaf.
type LineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// ShippingForm is the delivery address captured at checkout.
type ShippingForm struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required,mobile"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Address  string `json:"address" validate:"required"`
	Landmark string `json:"landmark,omitempty"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,pincode"`
}

// QuoteRequest is the payload for POST /cart/quote
type QuoteRequest struct {
	Items []LineRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckoutRequest is the payload for POST /checkout
type CheckoutRequest struct {
	CustomerID string        `json:"customerId,omitempty"` // empty for guests, phone is used instead
	Shipping   ShippingForm  `json:"shipping"`
	Items      []LineRequest `json:"items" validate:"required,min=1,dive"`
}

// VerifyRequest carries the payment widget's success callback.
type VerifyRequest struct {
	ExternalOrderID string `json:"razorpay_order_id" validate:"required"`
	PaymentID       string `json:"razorpay_payment_id" validate:"required"`
	Signature       string `json:"razorpay_signature" validate:"required"`
}

// CreateProductRequest is the payload for POST /admin/products
type CreateProductRequest struct {
	Name        string                  `json:"name" validate:"required"`
	Price       float64                 `json:"price" validate:"required,gt=0"`
	Category    string                  `json:"category"`
	Featured    bool                    `json:"featured"`
	ShowProduct *bool                   `json:"showProduct,omitempty"`
	GST         *pricing.GST            `json:"gst,omitempty"`
	GSM         *int                    `json:"gsm,omitempty" validate:"omitempty,gt=0"`
	Description string                  `json:"description,omitempty"`
	Images      []string                `json:"images,omitempty"`
	Stock       *int                    `json:"stock,omitempty"`
	Variants    map[string]VariantInput `json:"variants,omitempty" validate:"omitempty,dive"`
}

// VariantInput describes one color on product creation.
type VariantInput struct {
	Images []string       `json:"images" validate:"required,min=1"`
	Stock  *int           `json:"stock,omitempty"`
	Sizes  map[string]int `json:"sizes,omitempty"`
}

// UpdateProductRequest is the payload for PATCH /admin/products/:id
type UpdateProductRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1"`
	Price       *float64     `json:"price,omitempty" validate:"omitempty,gt=0"`
	Category    *string      `json:"category,omitempty"`
	Featured    *bool        `json:"featured,omitempty"`
	ShowProduct *bool        `json:"showProduct,omitempty"`
	GST         *pricing.GST `json:"gst,omitempty"`
	GSM         *int         `json:"gsm,omitempty" validate:"omitempty,gt=0"`
	Description *string      `json:"description,omitempty"`
	Images      []string     `json:"images,omitempty"`
}

// SetStockRequest is the payload for PUT /admin/products/:id/stock. Negative quantities are
// clamped to zero by the store.
type SetStockRequest struct {
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity *int   `json:"quantity" validate:"required"`
}

// DecrementStockRequest is the payload for POST /admin/products/:id/stock/decrement
type DecrementStockRequest struct {
	Color  string `json:"color,omitempty"`
	Size   string `json:"size,omitempty"`
	Amount int    `json:"amount" validate:"required,min=1"`
	Floor  bool   `json:"floor,omitempty"` // floor at zero instead of rejecting
}

// AddVariantRequest is the payload for POST /admin/products/:id/variants
type AddVariantRequest struct {
	Color  string   `json:"color" validate:"required"`
	Images []string `json:"images" validate:"required,min=1,dive,required"`
	Sized  *bool    `json:"sized,omitempty"` // defaults to true
}

// RenameVariantRequest is the payload for PUT /admin/products/:id/variants/:color
type RenameVariantRequest struct {
	NewColor string   `json:"newColor" validate:"required"`
	Images   []string `json:"images,omitempty" validate:"omitempty,dive,required"`
}

// AddSizeRequest is the payload for POST /admin/products/:id/variants/:color/sizes
type AddSizeRequest struct {
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// SizeQuantityRequest is the payload for PUT /admin/products/:id/variants/:color/sizes/:size
type SizeQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// UpdateStatusRequest is the payload for PATCH /admin/orders/:customerId/:orderId/status
type UpdateStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Expected string `json:"expected,omitempty"`
}

// Upload is an inline file attached to a request.
type Upload struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data" validate:"required"` // base64 in JSON
}

// ManualLineRequest is one hand-entered line of a manual order.
type ManualLineRequest struct {
	LineRequest
	Customization *Upload `json:"customization,omitempty"`
}

// ManualCustomer identifies the buyer of a manual order.
type ManualCustomer struct {
	Phone string `json:"phone" validate:"required,mobile"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// ManualOrderRequest is the payload for POST /admin/manual-orders
type ManualOrderRequest struct {
	DraftID  string              `json:"draftId,omitempty"`
	Customer ManualCustomer      `json:"customer"`
	Shipping *ShippingForm       `json:"shipping,omitempty"`
	Lines    []ManualLineRequest `json:"lines" validate:"required,min=1,dive"`
	Note     string              `json:"note,omitempty"`
}

package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// Status is the only mutable field of an order.
type Status string

// Order statuses
const (
	StatusPaid           Status = "Paid"
	StatusPaidToSelf     Status = "Paid to Self"
	StatusDispatched     Status = "Dispatched"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusShipped        Status = "Shipped"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{
	StatusPaid, StatusPaidToSelf, StatusDispatched, StatusOutForDelivery,
	StatusShipped, StatusDelivered, StatusCancelled,
}

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus validates a status supplied by a client.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// LineItem is a frozen copy of a purchased line.
type LineItem struct {
	ProductID          string      `json:"productId" dynamodbav:"product_id"`
	Name               string      `json:"name" dynamodbav:"name"`
	Color              string      `json:"color,omitempty" dynamodbav:"color,omitempty"`
	Size               string      `json:"size,omitempty" dynamodbav:"size,omitempty"`
	Quantity           int         `json:"quantity" dynamodbav:"quantity"`
	UnitPrice          float64     `json:"unitPrice" dynamodbav:"unit_price"`
	GST                pricing.GST `json:"gst" dynamodbav:"gst"`
	LineTotal          float64     `json:"lineTotal" dynamodbav:"line_total"`
	Image              string      `json:"image,omitempty" dynamodbav:"image,omitempty"`
	CustomizationImage string      `json:"customizationImage,omitempty" dynamodbav:"customization_image,omitempty"`
}

// Leaf is the stock counter the line was taken from.
func (l LineItem) Leaf() inventory.Leaf {
	return inventory.Leaf{ProductID: l.ProductID, Color: l.Color, Size: l.Size}
}

// Shipping is the address snapshot taken at checkout.
type Shipping struct {
	FullName string `json:"fullName" dynamodbav:"full_name"`
	Phone    string `json:"phone" dynamodbav:"phone"`
	Email    string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Address  string `json:"address" dynamodbav:"address"`
	Landmark string `json:"landmark,omitempty" dynamodbav:"landmark,omitempty"`
	City     string `json:"city" dynamodbav:"city"`
	State    string `json:"state" dynamodbav:"state"`
	Pincode  string `json:"pincode" dynamodbav:"pincode"`
}

// PaymentRef holds the external payment identifiers of a gateway-paid order.
type PaymentRef struct {
	ExternalOrderID string `json:"externalOrderId" dynamodbav:"external_order_id"`
	PaymentID       string `json:"paymentId" dynamodbav:"payment_id"`
	AttemptID       string `json:"attemptId,omitempty" dynamodbav:"attempt_id,omitempty"`
}

// Meta carries order annotations.
type Meta struct {
	Manual    bool   `json:"manual,omitempty" dynamodbav:"manual,omitempty"`
	CreatedBy string `json:"createdBy,omitempty" dynamodbav:"created_by,omitempty"`
	Note      string `json:"note,omitempty" dynamodbav:"note,omitempty"`
}

// Order represents the item stored in the Orders DynamoDB table. Everything but Status and
// UpdatedAt is fixed at creation.
type Order struct {
	CustomerID string         `json:"customerId" dynamodbav:"customer_id"` // PK
	OrderID    string         `json:"orderId" dynamodbav:"order_id"`       // SK
	Items      []LineItem     `json:"items" dynamodbav:"items"`
	Shipping   Shipping       `json:"shipping" dynamodbav:"shipping"`
	Totals     pricing.Totals `json:"totals" dynamodbav:"totals"`
	Currency   string         `json:"currency" dynamodbav:"currency"`
	Status     Status         `json:"status" dynamodbav:"status"`
	Meta       Meta           `json:"meta" dynamodbav:"meta"`
	Payment    *PaymentRef    `json:"payment,omitempty" dynamodbav:"payment,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updated_at"`
}

// Decrements lists the stock each line takes.
func (o Order) Decrements() []inventory.Decrement {
	out := make([]inventory.Decrement, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.Decrement{Leaf: it.Leaf(), Quantity: it.Quantity})
	}
	return out
}

var (
	ErrNotFound       = errors.New("order not found")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrTooManyLines   = errors.New("order touches too many products for one transaction")
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrAlreadyFinalized matches *AlreadyFinalizedError.
	ErrAlreadyFinalized = errors.New("order already finalized for this key")
)

// AlreadyFinalizedError is returned when the idempotency key already produced an order.
type AlreadyFinalizedError struct {
	Key        string
	OrderID    string
	CustomerID string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("key %s already finalized as order %s", e.Key, e.OrderID)
}

// Is lets errors.Is(err, ErrAlreadyFinalized) match.
func (e *AlreadyFinalizedError) Is(target error) bool {
	return target == ErrAlreadyFinalized
}

package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Key prefixes keep the namespaces sharing the table apart.
const (
	paymentPrefix = "payment#"
	manualPrefix  = "manual#"
	eventPrefix   = "event#"
)

// PaymentKey is the marker key for a captured gateway payment.
func PaymentKey(paymentID string) string { return paymentPrefix + paymentID }

// ManualKey is the marker key for an admin-entered order.
func ManualKey(key string) string { return manualPrefix + key }

// EventKey is the marker key for a consumed queue message.
func EventKey(messageID string) string { return eventPrefix + messageID }

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	CustomerID     string    `dynamodbav:"customer_id,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at,omitempty"` // TTL epoch seconds; 0 never expires
	Note           string    `dynamodbav:"note,omitempty"`
}

// Package events defines the order events the API publishes to SQS and the worker consumes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// Event types.
const (
	TypeOrderFinalized = "order.finalized"
	TypeStockRejected  = "order.stock_rejected"
)

// LeafQuantity is one stock leaf an order took units from.
type LeafQuantity struct {
	Leaf     inventory.Leaf `json:"leaf"`
	Quantity int            `json:"quantity"`
}

// Shortage is one leaf that could not cover its line.
type Shortage struct {
	Leaf      inventory.Leaf `json:"leaf"`
	Requested int            `json:"requested"`
	Available int            `json:"available"`
}

// OrderEvent is the payload sent from API -> SQS -> Worker.
type OrderEvent struct {
	Type            string         `json:"type"`
	OrderID         string         `json:"order_id,omitempty"`
	CustomerID      string         `json:"customer_id"`
	AttemptID       string         `json:"attempt_id,omitempty"`
	PaymentID       string         `json:"payment_id,omitempty"`
	ExternalOrderID string         `json:"external_order_id,omitempty"`
	GrandTotal      float64        `json:"grand_total"`
	Currency        string         `json:"currency,omitempty"`
	Manual          bool           `json:"manual,omitempty"`
	Leaves          []LeafQuantity `json:"leaves,omitempty"`
	Shortages       []Shortage     `json:"shortages,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// ShortagesFrom converts inventory shortfalls into event form.
func ShortagesFrom(lines []inventory.InsufficientStockError) []Shortage {
	out := make([]Shortage, 0, len(lines))
	for _, l := range lines {
		out = append(out, Shortage{Leaf: l.Leaf, Requested: l.Requested, Available: l.Available})
	}
	return out
}

// Finalized describes a committed order.
func Finalized(o *orders.Order) OrderEvent {
	ev := OrderEvent{
		Type:       TypeOrderFinalized,
		OrderID:    o.OrderID,
		CustomerID: o.CustomerID,
		GrandTotal: o.Totals.GrandTotal,
		Currency:   o.Currency,
		Manual:     o.Meta.Manual,
	}
	if o.Payment != nil {
		ev.AttemptID = o.Payment.AttemptID
		ev.PaymentID = o.Payment.PaymentID
		ev.ExternalOrderID = o.Payment.ExternalOrderID
	}
	for _, d := range o.Decrements() {
		ev.Leaves = append(ev.Leaves, LeafQuantity{Leaf: d.Leaf, Quantity: d.Quantity})
	}
	return ev
}

// Decode parses and checks a message body.
func Decode(body string) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return OrderEvent{}, fmt.Errorf("invalid message body: %w", err)
	}
	switch ev.Type {
	case TypeOrderFinalized:
		if ev.OrderID == "" {
			return OrderEvent{}, fmt.Errorf("%s without order_id", ev.Type)
		}
	case TypeStockRejected:
		if ev.PaymentID == "" {
			return OrderEvent{}, fmt.Errorf("%s without payment_id", ev.Type)
		}
	default:
		return OrderEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}

// Sender is the queue client. *aws.Publisher satisfies it.
type Sender interface {
	Send(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Publisher emits order events. A nil Publisher or one without a Sender drops events, which
// keeps local runs without a queue working.
type Publisher struct {
	sender  Sender
	nowFunc func() time.Time
}

// NewPublisher returns a Publisher writing through sender.
func NewPublisher(sender Sender) *Publisher {
	return &Publisher{sender: sender, nowFunc: time.Now}
}

// Publish sends ev. Failures are logged and returned; an order that is already committed
// stays committed.
func (p *Publisher) Publish(ctx context.Context, ev OrderEvent) error {
	if p == nil || p.sender == nil {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.nowFunc().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"event_type":  ev.Type,
		"customer_id": ev.CustomerID,
		"order_id":    ev.OrderID,
	}
	if err := p.sender.Send(ctx, string(body), attrs); err != nil {
		log.Printf("[events] publish %s order=%s payment=%s failed: %v", ev.Type, ev.OrderID, ev.PaymentID, err)
		return err
	}
	return nil
}

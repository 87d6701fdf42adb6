package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	orderevents "github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
)

// Metric names published by the worker.
const (
	metricOrdersFinalized = "OrdersFinalized"
	metricOrderValue      = "OrderValue"
	metricLowStockLeaves  = "LowStockLeaves"
	metricStockRejections = "StockRejections"
)

// Markers dedupes queue deliveries.
type Markers interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Products reads current stock.
type Products interface {
	Get(ctx context.Context, id string) (*inventory.Product, error)
}

// Recorder publishes metrics. *aws.Metrics satisfies it.
type Recorder interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
	Amount(ctx context.Context, name string, value float64, dims map[string]string) error
}

// Processor consumes order events: it records sales metrics, flags leaves that ran low and
// reports payments that need a refund because their stock was gone.
type Processor struct {
	markers           Markers
	products          Products
	metrics           Recorder
	lowStockThreshold int
}

// NewProcessor creates a new worker processor.
func NewProcessor(markers Markers, products Products, metrics Recorder, lowStockThreshold int) *Processor {
	return &Processor{
		markers:           markers,
		products:          products,
		metrics:           metrics,
		lowStockThreshold: lowStockThreshold,
	}
}

// Handle processes a batch and reports the messages that should be redelivered.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("[worker] message=%s error: %v", rec.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := orderevents.Decode(rec.Body)
	if err != nil {
		return err
	}
	key := idempotency.EventKey(rec.MessageId)

	created, err := p.markers.CreateIfNotExists(ctx, key, msg.OrderID)
	if err != nil {
		return fmt.Errorf("create marker: %w", err)
	}
	if !created {
		existing, err := p.markers.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read marker: %w", err)
		}
		switch {
		case existing == nil:
			return fmt.Errorf("marker %s vanished", key)
		case existing.Status == idempotency.StatusDone:
			log.Printf("[worker] already processed message=%s type=%s", rec.MessageId, msg.Type)
			return nil
		case existing.Status == idempotency.StatusInProgress:
			log.Printf("[worker] duplicate delivery in progress message=%s", rec.MessageId)
			return nil
		}
		log.Printf("[worker] retrying failed message=%s", rec.MessageId)
	}

	switch msg.Type {
	case orderevents.TypeOrderFinalized:
		err = p.finalized(ctx, msg)
	case orderevents.TypeStockRejected:
		err = p.stockRejected(ctx, msg)
	}
	if err != nil {
		if merr := p.markers.MarkFailed(ctx, key, err.Error()); merr != nil {
			log.Printf("[worker] mark failed %s: %v", key, merr)
		}
		return err
	}
	if err := p.markers.MarkDone(ctx, key); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

func channel(msg orderevents.OrderEvent) string {
	if msg.Manual {
		return "manual"
	}
	return "storefront"
}

func (p *Processor) finalized(ctx context.Context, msg orderevents.OrderEvent) error {
	dims := map[string]string{"Channel": channel(msg)}
	if err := p.metrics.Count(ctx, metricOrdersFinalized, 1, dims); err != nil {
		return err
	}
	if err := p.metrics.Amount(ctx, metricOrderValue, msg.GrandTotal, dims); err != nil {
		return err
	}

	snapshot := map[string]*inventory.Product{}
	low := 0
	for _, lq := range msg.Leaves {
		prod, seen := snapshot[lq.Leaf.ProductID]
		if !seen {
			var err error
			if prod, err = p.products.Get(ctx, lq.Leaf.ProductID); err != nil {
				return fmt.Errorf("load product %s: %w", lq.Leaf.ProductID, err)
			}
			snapshot[lq.Leaf.ProductID] = prod
		}
		if prod == nil {
			log.Printf("[worker] order=%s product %s no longer exists", msg.OrderID, lq.Leaf.ProductID)
			continue
		}
		remaining, ok := lq.Leaf.Quantity(*prod)
		if !ok || remaining > p.lowStockThreshold {
			continue
		}
		low++
		log.Printf("[worker] low stock leaf=%s remaining=%d order=%s", lq.Leaf, remaining, msg.OrderID)
	}
	if low > 0 {
		if err := p.metrics.Count(ctx, metricLowStockLeaves, float64(low), nil); err != nil {
			return err
		}
	}
	log.Printf("[worker] order=%s customer=%s total=%.2f channel=%s processed", msg.OrderID, msg.CustomerID, msg.GrandTotal, channel(msg))
	return nil
}

// stockRejected surfaces a captured payment whose order was refused for stock.
func (p *Processor) stockRejected(ctx context.Context, msg orderevents.OrderEvent) error {
	if err := p.metrics.Count(ctx, metricStockRejections, 1, nil); err != nil {
		return err
	}
	log.Printf("[worker] REFUND NEEDED payment=%s external_order=%s attempt=%s customer=%s amount=%.2f %s shortages=%d",
		msg.PaymentID, msg.ExternalOrderID, msg.AttemptID, msg.CustomerID, msg.GrandTotal, msg.Currency, len(msg.Shortages))
	return nil
}

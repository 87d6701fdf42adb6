package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
)

// maxTransactItems is DynamoDB's TransactWriteItems limit.
const maxTransactItems = 100

// Markers writes and reads the idempotency markers that guard Finalize.
type Markers interface {
	TransactPut(key, orderID, customerID string) (types.TransactWriteItem, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
}

// StockPlanner builds the conditional stock decrements that travel with an order.
type StockPlanner interface {
	DecrementTransactItems(lines []inventory.Decrement) (inventory.DecrementPlan, error)
	Shortfalls(ctx context.Context, group []inventory.Decrement) ([]inventory.InsufficientStockError, error)
}

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	markers   Markers
	stock     StockPlanner
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string, markers Markers, stock StockPlanner) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		markers:   markers,
		stock:     stock,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Finalize writes order exactly once for key. One TransactWriteItems call carries:
//   - the idempotency marker (attribute_not_exists(idempotency_key))
//   - the order put (attribute_not_exists(order_id))
//   - one conditional decrement per product touched by the order
//
// If the marker already exists an *AlreadyFinalizedError names the earlier order. If any leaf
// cannot cover its line nothing is written and an *inventory.StockShortage lists the short leaves.
func (s *Store) Finalize(ctx context.Context, key string, order Order) (*Order, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrInvalidOrder)
	}
	if order.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrInvalidOrder)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	if !order.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, order.Status)
	}
	if order.OrderID == "" {
		order.OrderID = s.newID()
	}
	now := s.nowFunc().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	marker, err := s.markers.TransactPut(key, order.OrderID, order.CustomerID)
	if err != nil {
		return nil, err
	}
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order item: %w", err)
	}
	plan, err := s.stock.DecrementTransactItems(order.Decrements())
	if err != nil {
		return nil, err
	}

	transactItems := []types.TransactWriteItem{
		marker,
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                orderMap,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}
	transactItems = append(transactItems, plan.Items...)
	if len(transactItems) > maxTransactItems {
		return nil, ErrTooManyLines
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, s.explainCancel(ctx, key, tce.CancellationReasons, plan)
		}
		return nil, fmt.Errorf("transact write: %w", err)
	}

	log.Printf("[orders] finalized order=%s customer=%s lines=%d total=%.2f status=%q",
		order.OrderID, order.CustomerID, len(order.Items), order.Totals.GrandTotal, order.Status)
	return &order, nil
}

// explainCancel maps per-action cancellation reasons back to a domain error. Actions are laid
// out as [marker, order, product updates...].
func (s *Store) explainCancel(ctx context.Context, key string, reasons []types.CancellationReason, plan inventory.DecrementPlan) error {
	code := func(i int) string {
		if i >= len(reasons) || reasons[i].Code == nil {
			return ""
		}
		return *reasons[i].Code
	}

	if code(0) == "ConditionalCheckFailed" {
		rec, err := s.markers.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read idempotency marker: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("idempotency marker %s vanished after conflict: %w", key, inventory.ErrConcurrentModification)
		}
		return &AlreadyFinalizedError{Key: key, OrderID: rec.OrderID, CustomerID: rec.CustomerID}
	}

	var (
		short    []inventory.InsufficientStockError
		conflict bool
	)
	for i, group := range plan.Groups {
		switch code(i + 2) {
		case "ConditionalCheckFailed":
			lines, err := s.stock.Shortfalls(ctx, group)
			if err != nil {
				return fmt.Errorf("read stock after cancel: %w", err)
			}
			short = append(short, lines...)
		case "TransactionConflict":
			conflict = true
		}
	}
	if len(short) > 0 {
		return &inventory.StockShortage{Lines: short}
	}
	if conflict || code(0) == "TransactionConflict" || code(1) == "TransactionConflict" {
		return fmt.Errorf("finalize: %w", inventory.ErrConcurrentModification)
	}
	// A decrement failed its condition but stock is back above the request: another writer
	// raced us, the caller may retry.
	return fmt.Errorf("finalize cancelled %v: %w", reasonCodes(reasons), inventory.ErrConcurrentModification)
}

func reasonCodes(reasons []types.CancellationReason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		if r.Code != nil {
			out[i] = *r.Code
		}
	}
	return out
}

func (s *Store) key(customerID, orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer_id": &types.AttributeValueMemberS{Value: customerID},
		"order_id":    &types.AttributeValueMemberS{Value: orderID},
	}
}

// Get fetches an order by (customer_id, order_id). Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, customerID, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(customerID, orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	in := &dyn.QueryInput{
		TableName:                 &s.tableName,
		KeyConditionExpression:    awsString("#c = :c"),
		ExpressionAttributeNames:  map[string]string{"#c": "customer_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: customerID}},
	}
	var all []Order
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query orders: %w", err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	newestFirst(all)
	return all, nil
}

// ListAll scans every order, newest first. A non-empty status narrows the result.
func (s *Store) ListAll(ctx context.Context, status Status) ([]Order, error) {
	in := &dyn.ScanInput{TableName: &s.tableName}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		in.FilterExpression = awsString("#s = :s")
		in.ExpressionAttributeNames = map[string]string{"#s": "status"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: string(status)}}
	}
	var all []Order
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	newestFirst(all)
	return all, nil
}

func newestFirst(all []Order) {
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
}

// UpdateStatus sets the status of an existing order. When expected is non-empty the update
// only applies if the order is currently in that status, otherwise ErrStatusMismatch.
// Only status and updated_at are written.
func (s *Store) UpdateStatus(ctx context.Context, customerID, orderID string, newStatus, expected Status) (*Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      s.key(customerID, orderID),
		UpdateExpression:         awsString("SET #s = :new, #ua = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status", "#ua": "updated_at", "#oid": "order_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: string(newStatus)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(#oid)"),
		ReturnValues:        types.ReturnValueAllNew,
	}
	if expected != "" {
		input.ConditionExpression = awsString("attribute_exists(#oid) AND #s = :expected")
		input.ExpressionAttributeValues[":expected"] = &types.AttributeValueMemberS{Value: string(expected)}
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			if expected == "" {
				return nil, ErrNotFound
			}
			current, gerr := s.Get(ctx, customerID, orderID)
			if gerr != nil {
				return nil, gerr
			}
			if current == nil {
				return nil, ErrNotFound
			}
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

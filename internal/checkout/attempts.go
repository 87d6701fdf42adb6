package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// Reason explains why an attempt failed.
type Reason string

const (
	ReasonStartFailed     Reason = "could not start payment"
	ReasonTooManyFailures Reason = "too many failures"
	ReasonSignature       Reason = "signature"
	ReasonOutOfStock      Reason = "out-of-stock"
	ReasonVerifyError     Reason = "verify-error"
)

// Attempt is one pass through checkout, stored in the checkout table.
type Attempt struct {
	AttemptID       string            `json:"attemptId" dynamodbav:"attempt_id"` // PK
	CustomerID      string            `json:"customerId" dynamodbav:"customer_id"`
	State           State             `json:"state" dynamodbav:"state"`
	Failures        int               `json:"failures" dynamodbav:"failures"`
	ExternalOrderID string            `json:"externalOrderId,omitempty" dynamodbav:"external_order_id,omitempty"`
	AmountMinor     int64             `json:"amountMinor" dynamodbav:"amount_minor"`
	Currency        string            `json:"currency" dynamodbav:"currency"`
	Items           []orders.LineItem `json:"items" dynamodbav:"items"`
	Shipping        orders.Shipping   `json:"shipping" dynamodbav:"shipping"`
	Totals          pricing.Totals    `json:"totals" dynamodbav:"totals"`
	PaymentID       string            `json:"paymentId,omitempty" dynamodbav:"payment_id,omitempty"`
	OrderID         string            `json:"orderId,omitempty" dynamodbav:"order_id,omitempty"`
	Reason          Reason            `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	Shortages       []events.Shortage `json:"shortages,omitempty" dynamodbav:"shortages,omitempty"`
	Version         int64             `json:"version" dynamodbav:"version"`
	CreatedAt       time.Time         `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time         `json:"updatedAt" dynamodbav:"updated_at"`
}

var (
	ErrAttemptNotFound = errors.New("checkout attempt not found")
	// ErrStateMismatch means another request moved the attempt first.
	ErrStateMismatch = errors.New("checkout attempt state changed concurrently")
)

// AttemptStore persists attempts. Every write after Create is conditional on the state and
// version the caller read.
type AttemptStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewAttemptStore(client aws.DynamoDBAPI, tableName string) *AttemptStore {
	return &AttemptStore{client: client, tableName: tableName, nowFunc: time.Now}
}

// Create stores a new attempt at version 1.
func (s *AttemptStore) Create(ctx context.Context, a *Attempt) error {
	now := s.nowFunc().UTC()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "attempt_id"},
	})
	if err != nil {
		return fmt.Errorf("put attempt: %w", err)
	}
	return nil
}

// Get fetches an attempt. Returns (nil, nil) if not found.
func (s *AttemptStore) Get(ctx context.Context, id string) (*Attempt, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            map[string]types.AttributeValue{"attempt_id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var a Attempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return &a, nil
}

// Advance writes a, which the caller read in state from at a.Version. The write only applies
// if the stored attempt is still there; otherwise ErrStateMismatch. On success a.Version is
// bumped.
func (s *AttemptStore) Advance(ctx context.Context, a *Attempt, from State) error {
	next := *a
	next.Version = a.Version + 1
	next.UpdatedAt = s.nowFunc().UTC()
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString("#st = :from AND #ver = :ver"),
		ExpressionAttributeNames: map[string]string{"#st": "state", "#ver": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":ver":  &types.AttributeValueMemberN{Value: strconv.FormatInt(a.Version, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: attempt %s left %s", ErrStateMismatch, a.AttemptID, from)
		}
		return fmt.Errorf("put attempt: %w", err)
	}
	*a = next
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }

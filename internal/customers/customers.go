// Package customers keeps the customer records keyed by phone number.
package customers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
)

// ErrPhoneRequired is returned when a customer has no phone number.
var ErrPhoneRequired = errors.New("phone is required")

// Customer is the item stored in the customers table.
type Customer struct {
	Phone     string    `json:"phone" dynamodbav:"phone"` // PK
	Name      string    `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email     string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// Store encapsulates operations on the customers table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new customers Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// LookupOrCreate returns the customer for phone, creating it with name and email when absent.
// An existing record is never overwritten.
func (s *Store) LookupOrCreate(ctx context.Context, phone, name, email string) (*Customer, bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, false, ErrPhoneRequired
	}
	c := Customer{
		Phone:     phone,
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		CreatedAt: s.nowFunc().UTC(),
	}
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, false, fmt.Errorf("marshal customer: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(phone)"),
	})
	if err == nil {
		return &c, true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return nil, false, fmt.Errorf("put customer: %w", err)
	}

	existing, err := s.Get(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("customer %s disappeared after conditional put", phone)
	}
	return existing, false, nil
}

// Get fetches a customer by phone. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, phone string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"phone": &types.AttributeValueMemberS{Value: phone},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

// List returns every customer, newest first.
func (s *Store) List(ctx context.Context) ([]Customer, error) {
	in := &dyn.ScanInput{TableName: &s.tableName}
	var all []Customer
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan customers: %w", err)
		}
		var page []Customer
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal customers: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func awsString(s string) *string { return &s }

// Package manualorder records orders an admin takes outside the storefront. They skip the
// payment gateway and are written as "Paid to Self" through the same finalize transaction
// as checkout.
package manualorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/customers"
	"github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
	"github.com/imrishuroy/storefront-orderflow/internal/storage"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

const finalizeRetries = 3

var (
	ErrEmptyDraft   = errors.New("draft has no lines")
	ErrUploadFailed = errors.New("customization upload failed")
)

// Upload is a customization image attached to a line.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LineInput is one line as the admin entered it.
type LineInput struct {
	ProductID     string
	Color         string
	Size          string
	Quantity      int
	Customization *Upload
}

// Line is an accepted, priced draft line.
type Line struct {
	Item               cart.Item
	CustomizationImage string
	customizationKey   string
}

// Draft collects lines until the admin saves the order.
type Draft struct {
	ID    string
	lines []Line
}

func NewDraft(id string) *Draft {
	if id == "" {
		id = uuid.NewString()
	}
	return &Draft{ID: id}
}

// Lines returns a copy of the accepted lines.
func (d *Draft) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// Products reads product snapshots.
type Products interface {
	Get(ctx context.Context, id string) (*inventory.Product, error)
}

// Objects stores uploaded files.
type Objects interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Customers finds or registers the buyer.
type Customers interface {
	LookupOrCreate(ctx context.Context, phone, name, email string) (*customers.Customer, bool, error)
}

// Ledger finalizes and reads orders.
type Ledger interface {
	Finalize(ctx context.Context, key string, order orders.Order) (*orders.Order, error)
	Get(ctx context.Context, customerID, orderID string) (*orders.Order, error)
}

// Publisher emits order events.
type Publisher interface {
	Publish(ctx context.Context, ev events.OrderEvent) error
}

type Service struct {
	products  Products
	objects   Objects
	customers Customers
	ledger    Ledger
	publisher Publisher
	currency  string
	nowFunc   func() time.Time
	newID     func() string
}

func NewService(products Products, objects Objects, customers Customers, ledger Ledger, publisher Publisher, currency string) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		products:  products,
		objects:   objects,
		customers: customers,
		ledger:    ledger,
		publisher: publisher,
		currency:  currency,
		nowFunc:   time.Now,
		newID:     func() string { return uuid.NewString()[:8] },
	}
}

// AddLine checks in against current stock, uploads its customization image, and appends it to
// d. Units already drafted for the same leaf count against the stock. On any error d is left
// as it was and the error is a *validation.LineError.
func (s *Service) AddLine(ctx context.Context, d *Draft, in LineInput) error {
	index := len(d.lines)
	lineErr := func(err error) error {
		return &validation.LineError{
			Index: index, ProductID: in.ProductID, Color: in.Color, Size: in.Size,
			Requested: in.Quantity, Err: err,
		}
	}
	if in.Quantity < 1 {
		return lineErr(cart.ErrInvalidQuantity)
	}

	p, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		return lineErr(err)
	}
	snapshot := map[string]*inventory.Product{}
	if p != nil {
		// Admins may sell products hidden from the storefront.
		visible := *p
		visible.ShowProduct = true
		snapshot[p.ID] = &visible
	}

	drafted := 0
	for _, l := range d.lines {
		if l.Item.ProductID == in.ProductID && l.Item.Color == in.Color && l.Item.Size == in.Size {
			drafted += l.Item.Quantity
		}
	}
	priced, err := cart.FromSnapshot([]cart.Line{{
		ProductID: in.ProductID, Color: in.Color, Size: in.Size, Quantity: drafted + in.Quantity,
	}}, snapshot)
	if err != nil {
		var le *validation.LineError
		if errors.As(err, &le) {
			le.Index = index
			le.Requested = in.Quantity
			le.Available = max(le.Available-drafted, 0)
			return le
		}
		return lineErr(err)
	}
	item := priced.Items()[0]
	item.Quantity = in.Quantity

	line := Line{Item: item}
	if in.Customization != nil {
		key := storage.CustomizationPath(s.nowFunc(), s.newID(), in.Customization.Filename)
		url, err := s.objects.Put(ctx, key, in.Customization.ContentType, in.Customization.Data)
		if err != nil {
			log.Printf("[manualorder] draft=%s line=%d upload %s failed: %v", d.ID, index, key, err)
			return lineErr(fmt.Errorf("%w: %v", ErrUploadFailed, err))
		}
		line.CustomizationImage = url
		line.customizationKey = key
	}

	d.lines = append(d.lines, line)
	return nil
}

// Discard deletes the customization images uploaded for d. Call it when the draft will not
// be saved. Failures are logged and leave the object behind.
func (s *Service) Discard(ctx context.Context, d *Draft) {
	for i, l := range d.lines {
		if l.customizationKey == "" {
			continue
		}
		if err := s.objects.Delete(ctx, l.customizationKey); err != nil {
			log.Printf("[manualorder] draft=%s line=%d delete %s failed: %v", d.ID, i, l.customizationKey, err)
		}
	}
}

// RemoveLine drops the line at index i.
func (d *Draft) RemoveLine(i int) {
	if i < 0 || i >= len(d.lines) {
		return
	}
	d.lines = append(d.lines[:i:i], d.lines[i+1:]...)
}

// Buyer identifies the customer of a manual order.
type Buyer struct {
	Phone string
	Name  string
	Email string
}

// SaveInput completes a draft.
type SaveInput struct {
	Buyer          Buyer
	Shipping       *orders.Shipping // defaults to the buyer's name and phone
	IdempotencyKey string           // defaults to the draft id
	CreatedBy      string
	Note           string
}

// SaveResult is a written manual order.
type SaveResult struct {
	Order           *orders.Order
	CustomerCreated bool
	Duplicate       bool
}

// Save writes the draft as one "Paid to Self" order and takes its stock in the same
// transaction. Saving the same key twice returns the first order.
func (s *Service) Save(ctx context.Context, d *Draft, in SaveInput) (*SaveResult, error) {
	if len(d.lines) == 0 {
		return nil, ErrEmptyDraft
	}
	cust, created, err := s.customers.LookupOrCreate(ctx, in.Buyer.Phone, in.Buyer.Name, in.Buyer.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}

	items := make([]orders.LineItem, 0, len(d.lines))
	inputs := make([]pricing.LineInput, 0, len(d.lines))
	for _, l := range d.lines {
		li := l.Item.LineItem()
		li.CustomizationImage = l.CustomizationImage
		items = append(items, li)
		inputs = append(inputs, pricing.LineInput{UnitPrice: l.Item.UnitPrice, Quantity: l.Item.Quantity, GST: l.Item.GST})
	}

	shipping := orders.Shipping{FullName: cust.Name, Phone: cust.Phone, Email: cust.Email}
	if in.Shipping != nil {
		shipping = *in.Shipping
	}
	order := orders.Order{
		CustomerID: cust.Phone,
		Items:      items,
		Shipping:   shipping,
		Totals:     pricing.Summarize(inputs),
		Currency:   s.currency,
		Status:     orders.StatusPaidToSelf,
		Meta:       orders.Meta{Manual: true, CreatedBy: in.CreatedBy, Note: in.Note},
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = d.ID
	}
	key = idempotency.ManualKey(key)

	var written *orders.Order
	for try := 1; try <= finalizeRetries; try++ {
		written, err = s.ledger.Finalize(ctx, key, order)
		if !errors.Is(err, inventory.ErrConcurrentModification) {
			break
		}
		log.Printf("[manualorder] draft=%s finalize conflict try=%d: %v", d.ID, try, err)
	}

	var dup *orders.AlreadyFinalizedError
	if errors.As(err, &dup) {
		existing, gerr := s.ledger.Get(ctx, dup.CustomerID, dup.OrderID)
		if gerr != nil {
			return nil, gerr
		}
		if existing == nil {
			return nil, fmt.Errorf("marker %s references missing order %s: %w", key, dup.OrderID, orders.ErrNotFound)
		}
		// The stored order points at the first submission's images.
		s.Discard(ctx, d)
		return &SaveResult{Order: existing, CustomerCreated: created, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[manualorder] draft=%s order=%s customer=%s total=%.2f", d.ID, written.OrderID, written.CustomerID, written.Totals.GrandTotal)
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.Finalized(written))
	}
	return &SaveResult{Order: written, CustomerCreated: created}, nil
}

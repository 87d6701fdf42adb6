// Package checkout drives a shopper's checkout attempt from a priced cart through the payment
// gateway to one finalized order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/payment"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

const (
	defaultMaxFailures     = 3
	defaultFinalizeRetries = 3
)

var (
	ErrInvalidShipping   = errors.New("invalid shipping details")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrVerifyInProgress  = errors.New("payment verification already in progress")
	// ErrGatewayUnavailable wraps gateway failures that leave the attempt retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrOrderPending means the order is committed but could not be read back yet. The
	// attempt stays in StateFinalizing and the same callback completes it.
	ErrOrderPending = errors.New("order committed, confirmation pending")
)

// FailedError reports an attempt that ended in StateFailed.
type FailedError struct {
	AttemptID string
	Reason    Reason
	Shortages []events.Shortage
	Err       error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("checkout %s failed: %s", e.AttemptID, e.Reason)
	}
	return fmt.Sprintf("checkout %s failed: %s: %v", e.AttemptID, e.Reason, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Products reads product snapshots for pricing.
type Products interface {
	Get(ctx context.Context, id string) (*inventory.Product, error)
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

// Config tunes a Service.
type Config struct {
	Secret          string // gateway key secret used for signatures
	Currency        string
	MaxFailures     int // dismissals before the attempt fails
	FinalizeRetries int // finalize attempts on concurrent modification
}

// Service runs checkout attempts.
type Service struct {
	attempts  *AttemptStore
	products  Products
	gateway   payment.Gateway
	ledger    Ledger
	publisher Publisher
	cfg       Config
	newID     func() string
}

func NewService(attempts *AttemptStore, products Products, gateway payment.Gateway, ledger Ledger, publisher Publisher, cfg Config) *Service {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.FinalizeRetries <= 0 {
		cfg.FinalizeRetries = defaultFinalizeRetries
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Service{
		attempts:  attempts,
		products:  products,
		gateway:   gateway,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// StartInput is a submitted checkout form.
type StartInput struct {
	CustomerID string
	Shipping   orders.Shipping
	Lines      []cart.Line
}

// Quote prices lines against the current catalogue without touching stock.
func (s *Service) Quote(ctx context.Context, lines []cart.Line) (cart.Cart, error) {
	if len(lines) == 0 {
		return cart.Cart{}, ErrEmptyCart
	}
	snapshot := map[string]*inventory.Product{}
	for _, l := range lines {
		if _, seen := snapshot[l.ProductID]; seen {
			continue
		}
		p, err := s.products.Get(ctx, l.ProductID)
		if err != nil {
			return cart.Cart{}, fmt.Errorf("load product %s: %w", l.ProductID, err)
		}
		snapshot[l.ProductID] = p
	}
	return cart.FromSnapshot(lines, snapshot)
}

// Start validates the form, re-prices the cart and mints an external payment order for its
// grand total. A gateway failure fails the attempt with ReasonStartFailed.
func (s *Service) Start(ctx context.Context, in StartInput) (*Attempt, error) {
	if err := checkShipping(in.Shipping); err != nil {
		return nil, err
	}
	c, err := s.Quote(ctx, in.Lines)
	if err != nil {
		return nil, err
	}
	totals := c.Totals()

	customer := strings.TrimSpace(in.CustomerID)
	if customer == "" {
		customer = in.Shipping.Phone
	}
	state, err := Next(StateIdle, EventSubmit)
	if err != nil {
		return nil, err
	}
	a := &Attempt{
		AttemptID:   s.newID(),
		CustomerID:  customer,
		State:       state,
		AmountMinor: totals.MinorUnits(),
		Currency:    s.cfg.Currency,
		Items:       c.LineItems(),
		Shipping:    in.Shipping,
		Totals:      totals,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, err
	}

	ext, err := s.gateway.CreateOrder(ctx, a.AmountMinor, a.Currency, a.AttemptID)
	if err != nil {
		log.Printf("[checkout] attempt=%s create payment order failed: %v", a.AttemptID, err)
		return a, s.fail(ctx, a, StateAwaitingExternalOrder, EventMintFailed, ReasonStartFailed, err)
	}
	if err := s.minted(ctx, a, ext); err != nil {
		return nil, err
	}
	log.Printf("[checkout] attempt=%s customer=%s external_order=%s amount=%d", a.AttemptID, a.CustomerID, a.ExternalOrderID, a.AmountMinor)
	return a, nil
}

func (s *Service) minted(ctx context.Context, a *Attempt, ext payment.ExternalOrder) error {
	to, err := Next(a.State, EventOrderMinted)
	if err != nil {
		return err
	}
	from := a.State
	a.State = to
	a.ExternalOrderID = ext.ID
	return s.attempts.Advance(ctx, a, from)
}

// fail moves a to StateFailed and returns the matching *FailedError.
func (s *Service) fail(ctx context.Context, a *Attempt, from State, ev Event, reason Reason, cause error) error {
	to, err := Next(from, ev)
	if err != nil {
		return err
	}
	a.State = to
	a.Reason = reason
	if err := s.attempts.Advance(ctx, a, from); err != nil {
		log.Printf("[checkout] attempt=%s record failure %q: %v", a.AttemptID, reason, err)
	}
	return &FailedError{AttemptID: a.AttemptID, Reason: reason, Shortages: a.Shortages, Err: cause}
}

func (s *Service) load(ctx context.Context, id string) (*Attempt, error) {
	a, err := s.attempts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// DismissResult is the outcome of closing the payment widget.
type DismissResult struct {
	Attempt *Attempt
	Message string
}

// Dismiss counts a closed payment widget. Below MaxFailures the attempt returns to
// StateAwaitingExternalOrder with message "attempt N/M"; at MaxFailures it fails.
func (s *Service) Dismiss(ctx context.Context, id string) (*DismissResult, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.State
	a.Failures++
	if a.Failures >= s.cfg.MaxFailures {
		to, err := Next(from, EventGaveUp)
		if err != nil {
			return nil, err
		}
		a.State = to
		a.Reason = ReasonTooManyFailures
		if err := s.attempts.Advance(ctx, a, from); err != nil {
			return nil, err
		}
		log.Printf("[checkout] attempt=%s failed after %d dismissals", a.AttemptID, a.Failures)
		return &DismissResult{Attempt: a, Message: string(ReasonTooManyFailures)}, nil
	}
	to, err := Next(from, EventDismissed)
	if err != nil {
		return nil, err
	}
	a.State = to
	if err := s.attempts.Advance(ctx, a, from); err != nil {
		return nil, err
	}
	return &DismissResult{Attempt: a, Message: fmt.Sprintf("attempt %d/%d", a.Failures, s.cfg.MaxFailures)}, nil
}

// Retry mints a fresh external order for an attempt waiting in StateAwaitingExternalOrder.
// A gateway failure leaves the attempt where it was.
func (s *Service) Retry(ctx context.Context, id string) (*Attempt, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Next(a.State, EventOrderMinted); err != nil {
		return nil, err
	}
	ext, err := s.gateway.CreateOrder(ctx, a.AmountMinor, a.Currency, a.AttemptID)
	if err != nil {
		log.Printf("[checkout] attempt=%s retry create payment order failed: %v", a.AttemptID, err)
		return a, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if err := s.minted(ctx, a, ext); err != nil {
		return nil, err
	}
	return a, nil
}

// VerifyInput is the gateway's success callback.
type VerifyInput struct {
	ExternalOrderID string
	PaymentID       string
	Signature       string
}

// VerifyResult is a completed checkout.
type VerifyResult struct {
	Attempt   *Attempt
	Order     *orders.Order
	ClearCart bool
	Duplicate bool
}

// Verify checks the payment signature and finalizes the order: one transaction writes the
// idempotency marker for the payment id, the order and every stock decrement. Replayed
// callbacks for the same payment return the order already written.
func (s *Service) Verify(ctx context.Context, id string, in VerifyInput) (*VerifyResult, error) {
	res, err := s.verify(ctx, id, in)
	if errors.Is(err, ErrStateMismatch) {
		return nil, fmt.Errorf("%w: %w", ErrVerifyInProgress, err)
	}
	return res, err
}

func (s *Service) verify(ctx context.Context, id string, in VerifyInput) (*VerifyResult, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	resumed := false
	switch a.State {
	case StateComplete:
		if a.PaymentID == in.PaymentID {
			return s.replay(ctx, a)
		}
		return nil, fmt.Errorf("%w: attempt %s completed with another payment", ErrInvalidTransition, a.AttemptID)
	case StateFailed:
		return nil, &FailedError{AttemptID: a.AttemptID, Reason: a.Reason, Shortages: a.Shortages}
	case StateVerifying, StateFinalizing:
		// A verify that died midway: the payment marker makes finalizing again safe.
		if a.PaymentID != in.PaymentID {
			return nil, ErrVerifyInProgress
		}
		resumed = true
	default:
		to, err := Next(a.State, EventPaid)
		if err != nil {
			return nil, err
		}
		from := a.State
		a.State = to
		a.PaymentID = in.PaymentID
		if err := s.attempts.Advance(ctx, a, from); err != nil {
			if errors.Is(err, ErrStateMismatch) {
				return s.afterRace(ctx, id, in)
			}
			return nil, err
		}
	}

	signed := in.ExternalOrderID == a.ExternalOrderID && payment.VerifySignature(s.cfg.Secret, a.ExternalOrderID, in.PaymentID, in.Signature)
	if !signed {
		log.Printf("[checkout] attempt=%s signature mismatch payment=%s resumed=%t", a.AttemptID, in.PaymentID, resumed)
		if resumed {
			// Another callback owns this attempt; a forged one must not fail it.
			return nil, ErrSignatureMismatch
		}
		return nil, s.fail(ctx, a, StateVerifying, EventSignatureBad, ReasonSignature, ErrSignatureMismatch)
	}

	if a.State == StateVerifying {
		to, err := Next(a.State, EventSignatureOK)
		if err != nil {
			return nil, err
		}
		a.State = to
		if err := s.attempts.Advance(ctx, a, StateVerifying); err != nil {
			return nil, err
		}
	}

	return s.finalize(ctx, a)
}

// afterRace handles losing the AwaitingUserPayment -> Verifying race to a concurrent callback.
func (s *Service) afterRace(ctx context.Context, id string, in VerifyInput) (*VerifyResult, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State == StateComplete && a.PaymentID == in.PaymentID {
		return s.replay(ctx, a)
	}
	return nil, ErrVerifyInProgress
}

func (s *Service) replay(ctx context.Context, a *Attempt) (*VerifyResult, error) {
	o, err := s.ledger.Get(ctx, a.CustomerID, a.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("attempt %s references missing order %s: %w", a.AttemptID, a.OrderID, orders.ErrNotFound)
	}
	return &VerifyResult{Attempt: a, Order: o, ClearCart: true, Duplicate: true}, nil
}

func (s *Service) finalize(ctx context.Context, a *Attempt) (*VerifyResult, error) {
	order := orders.Order{
		CustomerID: a.CustomerID,
		Items:      a.Items,
		Shipping:   a.Shipping,
		Totals:     a.Totals,
		Currency:   a.Currency,
		Status:     orders.StatusPaid,
		Payment: &orders.PaymentRef{
			ExternalOrderID: a.ExternalOrderID,
			PaymentID:       a.PaymentID,
			AttemptID:       a.AttemptID,
		},
	}
	key := idempotency.PaymentKey(a.PaymentID)

	var (
		written   *orders.Order
		duplicate bool
		err       error
	)
	for try := 1; try <= s.cfg.FinalizeRetries; try++ {
		written, err = s.ledger.Finalize(ctx, key, order)
		if !errors.Is(err, inventory.ErrConcurrentModification) {
			break
		}
		log.Printf("[checkout] attempt=%s finalize conflict try=%d: %v", a.AttemptID, try, err)
	}

	var dup *orders.AlreadyFinalizedError
	var short *inventory.StockShortage
	switch {
	case err == nil:
	case errors.As(err, &dup):
		written, err = s.ledger.Get(ctx, dup.CustomerID, dup.OrderID)
		if err == nil && written == nil {
			err = fmt.Errorf("order %s not visible yet", dup.OrderID)
		}
		if err != nil {
			// Stock is already taken for this payment; never fail the attempt here.
			log.Printf("[checkout] attempt=%s marker %s committed, read back failed: %v", a.AttemptID, key, err)
			return nil, fmt.Errorf("%w: %v", ErrOrderPending, err)
		}
		duplicate = true
	case errors.As(err, &short):
		a.Shortages = events.ShortagesFrom(short.Lines)
		ferr := s.fail(ctx, a, StateFinalizing, EventFinalizeFailed, ReasonOutOfStock, err)
		s.publish(ctx, events.OrderEvent{
			Type:            events.TypeStockRejected,
			CustomerID:      a.CustomerID,
			AttemptID:       a.AttemptID,
			PaymentID:       a.PaymentID,
			ExternalOrderID: a.ExternalOrderID,
			GrandTotal:      a.Totals.GrandTotal,
			Currency:        a.Currency,
			Shortages:       a.Shortages,
		})
		log.Printf("[checkout] attempt=%s payment=%s rejected: %v", a.AttemptID, a.PaymentID, err)
		return nil, ferr
	default:
		log.Printf("[checkout] attempt=%s finalize failed: %v", a.AttemptID, err)
		return nil, s.fail(ctx, a, StateFinalizing, EventFinalizeFailed, ReasonVerifyError, err)
	}

	to, err := Next(a.State, EventFinalized)
	if err != nil {
		return nil, err
	}
	a.State = to
	a.OrderID = written.OrderID
	if err := s.attempts.Advance(ctx, a, StateFinalizing); err != nil {
		log.Printf("[checkout] attempt=%s order=%s record completion: %v", a.AttemptID, written.OrderID, err)
	}

	if !duplicate {
		s.publish(ctx, events.Finalized(written))
	}
	return &VerifyResult{Attempt: a, Order: written, ClearCart: true, Duplicate: duplicate}, nil
}

// publish is best effort: a committed order stays committed.
func (s *Service) publish(ctx context.Context, ev events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, ev)
}

func checkShipping(sh orders.Shipping) error {
	required := map[string]string{
		"fullName": sh.FullName,
		"phone":    sh.Phone,
		"address":  sh.Address,
		"city":     sh.City,
		"state":    sh.State,
		"pincode":  sh.Pincode,
	}
	for _, field := range []string{"fullName", "phone", "address", "city", "state", "pincode"} {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidShipping, field)
		}
	}
	if !validation.ValidPincode(sh.Pincode) {
		return fmt.Errorf("%w: pincode must be 6 digits", ErrInvalidShipping)
	}
	if !validation.ValidMobile(sh.Phone) {
		return fmt.Errorf("%w: phone must be 10 digits starting 6-9", ErrInvalidShipping)
	}
	return nil
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/payment"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

const secret = "gateway-secret"

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (payment.ExternalOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return payment.ExternalOrder{}, g.err
	}
	return payment.ExternalOrder{ID: fmt.Sprintf("order_ext_%d", g.calls), AmountMinor: amountMinor, Currency: currency, Receipt: receipt}, nil
}

type fixture struct {
	db       *awstest.DynamoDB
	sqs      *awstest.SQS
	products *inventory.Store
	ledger   *orders.Store
	gateway  *fakeGateway
	svc      *Service
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := awstest.NewDynamoDB()
	db.CreateTable("products", "product_id", "")
	db.CreateTable("orders", "customer_id", "order_id")
	db.CreateTable("idempotency", "idempotency_key", "")
	db.CreateTable("checkout", "attempt_id", "")

	products := inventory.NewStore(db, "products")
	markers := idempotency.NewStore(db, "idempotency", 48*time.Hour)
	ledger := orders.NewStore(db, "orders", markers, products)
	q := &awstest.SQS{}
	gw := &fakeGateway{}

	attempts := NewAttemptStore(db, "checkout")
	attempts.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	svc := NewService(attempts, products, gw, ledger,
		events.NewPublisher(aws.NewPublisher(q, "https://sqs.local/order-events")),
		Config{Secret: secret, Currency: "INR"})
	n := 0
	svc.newID = func() string { n++; return fmt.Sprintf("att-%d", n) }

	ctx := context.Background()
	_, err := products.Create(ctx, inventory.Product{
		ID: "tee", Name: "Tee", Price: 500, Category: "T-Shirt", ShowProduct: true,
		Variants: map[string]inventory.Variant{
			"Red": {Images: []string{"red.jpg"}, Sizes: map[string]int{"M": 5, "L": 1}},
		},
	})
	require.NoError(t, err)
	_, err = products.Create(ctx, inventory.Product{
		ID: "mug", Name: "Mug", Price: 200, Category: "Kitchen", ShowProduct: true,
		Images: []string{"mug.jpg"}, Stock: intPtr(5),
	})
	require.NoError(t, err)

	return &fixture{db: db, sqs: q, products: products, ledger: ledger, gateway: gw, svc: svc}
}

func shipping() orders.Shipping {
	return orders.Shipping{
		FullName: "Asha Rao", Phone: "9876543210", Address: "12 MG Road",
		City: "Bengaluru", State: "KA", Pincode: "560001",
	}
}

func teeStart(qty int) StartInput {
	return StartInput{
		Shipping: shipping(),
		Lines:    []cart.Line{{ProductID: "tee", Color: "Red", Size: "M", Quantity: qty}},
	}
}

func (f *fixture) leaf(t *testing.T, l inventory.Leaf) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), l.ProductID)
	require.NoError(t, err)
	require.NotNil(t, p)
	q, ok := l.Quantity(*p)
	require.True(t, ok)
	return q
}

func paid(a *Attempt, paymentID string) VerifyInput {
	return VerifyInput{
		ExternalOrderID: a.ExternalOrderID,
		PaymentID:       paymentID,
		Signature:       payment.Sign(secret, a.ExternalOrderID, paymentID),
	}
}

var redM = inventory.Leaf{ProductID: "tee", Color: "Red", Size: "M"}

func TestCheckoutEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(2))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUserPayment, a.State)
	assert.Equal(t, 1000.0, a.Totals.Subtotal)
	assert.Equal(t, 50.0, a.Totals.TaxTotal)
	assert.Equal(t, 1050.0, a.Totals.GrandTotal)
	assert.Equal(t, int64(105000), a.AmountMinor)
	assert.Equal(t, "9876543210", a.CustomerID, "guests are keyed by phone")
	assert.Equal(t, 5, f.leaf(t, redM), "start does not touch stock")

	res, err := f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.NoError(t, err)
	assert.True(t, res.ClearCart)
	assert.False(t, res.Duplicate)
	assert.Equal(t, StateComplete, res.Attempt.State)
	assert.Equal(t, orders.StatusPaid, res.Order.Status)
	assert.Equal(t, 1050.0, res.Order.Totals.GrandTotal)
	assert.Equal(t, 3, f.leaf(t, redM))

	list, err := f.ledger.ListByCustomer(ctx, "9876543210")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Order.OrderID, list[0].OrderID)

	stored, err := f.svc.attempts.Get(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, stored.State)
	assert.Equal(t, res.Order.OrderID, stored.OrderID)

	sent := f.sqs.Sent()
	require.Len(t, sent, 1)
	ev, err := events.Decode(sent[0].Body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeOrderFinalized, ev.Type)
	assert.Equal(t, "pay_1", ev.PaymentID)
}

func TestVerifyReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(2))
	require.NoError(t, err)
	first, err := f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.NoError(t, err)

	again, err := f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Order.OrderID, again.Order.OrderID)
	assert.Equal(t, 3, f.leaf(t, redM))
	assert.Equal(t, 1, f.db.Len("orders"))
	assert.Len(t, f.sqs.Sent(), 1)
}

func TestConcurrentVerifyCallbacksWriteOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrVerifyInProgress)
	}
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, 1, f.db.Len("orders"))
	assert.Equal(t, 4, f.leaf(t, redM))
}

func TestVerifySignatureMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(2))
	require.NoError(t, err)
	in := paid(a, "pay_1")
	last := in.Signature[len(in.Signature)-1]
	if last == '0' {
		last = '1'
	} else {
		last = '0'
	}
	in.Signature = in.Signature[:len(in.Signature)-1] + string(last)

	_, err = f.svc.Verify(ctx, a.AttemptID, in)
	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonSignature, fe.Reason)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, 5, f.leaf(t, redM))
	assert.Equal(t, 0, f.db.Len("orders"))

	// No in-place retry once the attempt failed.
	_, err = f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonSignature, fe.Reason)
}

// staleLedger misses the first reads after a commit.
type staleLedger struct {
	Ledger
	misses int
}

func (l *staleLedger) Get(ctx context.Context, customerID, orderID string) (*orders.Order, error) {
	if l.misses > 0 {
		l.misses--
		return nil, nil
	}
	return l.Ledger.Get(ctx, customerID, orderID)
}

// crashAfterCommit leaves a as a verify that committed the order but died before completing.
func (f *fixture) crashAfterCommit(t *testing.T, a *Attempt, paymentID string) {
	t.Helper()
	ctx := context.Background()
	a.PaymentID = paymentID
	a.State = StateVerifying
	require.NoError(t, f.svc.attempts.Advance(ctx, a, StateAwaitingUserPayment))
	a.State = StateFinalizing
	require.NoError(t, f.svc.attempts.Advance(ctx, a, StateVerifying))

	_, err := f.ledger.Finalize(ctx, idempotency.PaymentKey(paymentID), orders.Order{
		CustomerID: a.CustomerID,
		Items:      a.Items,
		Shipping:   a.Shipping,
		Totals:     a.Totals,
		Currency:   a.Currency,
		Status:     orders.StatusPaid,
		Payment:    &orders.PaymentRef{ExternalOrderID: a.ExternalOrderID, PaymentID: paymentID, AttemptID: a.AttemptID},
	})
	require.NoError(t, err)
}

func TestResumeKeepsCommittedOrderWhenReadLags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(2))
	require.NoError(t, err)
	f.crashAfterCommit(t, a, "pay_1")
	f.svc.ledger = &staleLedger{Ledger: f.ledger, misses: 1}

	_, err = f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.ErrorIs(t, err, ErrOrderPending)
	var fe *FailedError
	assert.False(t, errors.As(err, &fe))

	stored, err := f.svc.attempts.Get(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateFinalizing, stored.State)
	assert.Equal(t, 3, f.leaf(t, redM))

	res, err := f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, StateComplete, res.Attempt.State)
	assert.Equal(t, 1, f.db.Len("orders"))
	assert.Equal(t, 3, f.leaf(t, redM))
}

func TestForgedCallbackLeavesInFlightAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)
	a.PaymentID = "pay_1"
	a.State = StateVerifying
	require.NoError(t, f.svc.attempts.Advance(ctx, a, StateAwaitingUserPayment))

	forged := paid(a, "pay_1")
	forged.Signature = payment.Sign("not-the-secret", a.ExternalOrderID, "pay_1")
	_, err = f.svc.Verify(ctx, a.AttemptID, forged)
	require.ErrorIs(t, err, ErrSignatureMismatch)
	var fe *FailedError
	assert.False(t, errors.As(err, &fe))

	stored, err := f.svc.attempts.Get(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateVerifying, stored.State)

	res, err := f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.Attempt.State)
	assert.Equal(t, 4, f.leaf(t, redM))
}

func TestVerifyRejectsForeignExternalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)
	in := VerifyInput{ExternalOrderID: "order_other", PaymentID: "pay_1", Signature: payment.Sign(secret, "order_other", "pay_1")}
	_, err = f.svc.Verify(ctx, a.AttemptID, in)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyOutOfStockRejectsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(4))
	require.NoError(t, err)
	// Another shopper buys most of the stock while this one is paying.
	_, err = f.products.DecrementStock(ctx, redM, 3)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonOutOfStock, fe.Reason)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Len(t, fe.Shortages, 1)
	assert.Equal(t, events.Shortage{Leaf: redM, Requested: 4, Available: 2}, fe.Shortages[0])

	assert.Equal(t, 2, f.leaf(t, redM), "nothing taken on rejection")
	assert.Equal(t, 0, f.db.Len("orders"))
	assert.Nil(t, f.db.Item("idempotency", idempotency.PaymentKey("pay_1")))

	sent := f.sqs.Sent()
	require.Len(t, sent, 1)
	ev, err := events.Decode(sent[0].Body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeStockRejected, ev.Type)
	assert.Equal(t, "pay_1", ev.PaymentID)

	stored, err := f.svc.attempts.Get(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
	assert.Equal(t, ReasonOutOfStock, stored.Reason)
}

func TestVerifyStoreErrorFailsWithVerifyError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)
	f.db.FailNext("TransactWriteItems", errors.New("service unavailable"))

	_, err = f.svc.Verify(ctx, a.AttemptID, paid(a, "pay_1"))
	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonVerifyError, fe.Reason)
	assert.Equal(t, 5, f.leaf(t, redM))
}

func TestStartGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = payment.ErrGateway

	a, err := f.svc.Start(context.Background(), teeStart(1))
	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonStartFailed, fe.Reason)
	require.NotNil(t, a)
	assert.Equal(t, StateFailed, a.State)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := teeStart(1)
	in.Shipping.Pincode = "5600"
	_, err := f.svc.Start(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidShipping)

	in = teeStart(1)
	in.Shipping.Phone = "1234567890"
	_, err = f.svc.Start(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidShipping)

	in = teeStart(1)
	in.Shipping.City = " "
	_, err = f.svc.Start(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidShipping)

	in = teeStart(1)
	in.Lines = nil
	_, err = f.svc.Start(ctx, in)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.Start(ctx, teeStart(6))
	var le *validation.LineError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, cart.ErrExceedsStock)

	assert.Equal(t, 0, f.gateway.calls, "no external call before validation passes")
	assert.Equal(t, 0, f.db.Len("checkout"))
}

func TestStartUsesCustomerID(t *testing.T) {
	f := newFixture(t)
	in := teeStart(1)
	in.CustomerID = "cust-42"
	a, err := f.svc.Start(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "cust-42", a.CustomerID)
}

func TestDismissRetryAndGiveUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)

	res, err := f.svc.Dismiss(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, "attempt 1/3", res.Message)
	assert.Equal(t, StateAwaitingExternalOrder, res.Attempt.State)

	// Widget is closed: a second dismissal has nothing to dismiss.
	_, err = f.svc.Dismiss(ctx, a.AttemptID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	a, err = f.svc.Retry(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUserPayment, a.State)
	assert.Equal(t, "order_ext_2", a.ExternalOrderID)

	res, err = f.svc.Dismiss(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, "attempt 2/3", res.Message)

	_, err = f.svc.Retry(ctx, a.AttemptID)
	require.NoError(t, err)
	res, err = f.svc.Dismiss(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.Attempt.State)
	assert.Equal(t, ReasonTooManyFailures, res.Attempt.Reason)
	assert.Equal(t, "too many failures", res.Message)

	_, err = f.svc.Retry(ctx, a.AttemptID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryGatewayFailureStaysRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)
	_, err = f.svc.Dismiss(ctx, a.AttemptID)
	require.NoError(t, err)

	f.gateway.err = payment.ErrGateway
	_, err = f.svc.Retry(ctx, a.AttemptID)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	f.gateway.err = nil
	a, err = f.svc.Retry(ctx, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUserPayment, a.State)
}

func TestVerifyAfterRetryUsesLatestExternalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, teeStart(1))
	require.NoError(t, err)
	stale := paid(first, "pay_1")
	_, err = f.svc.Dismiss(ctx, first.AttemptID)
	require.NoError(t, err)
	a, err := f.svc.Retry(ctx, first.AttemptID)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, a.AttemptID, stale)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestUnknownAttempt(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Dismiss(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	_, err = f.svc.Verify(context.Background(), "nope", VerifyInput{})
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Quote(context.Background(), []cart.Line{
		{ProductID: "tee", Color: "Red", Size: "M", Quantity: 2},
		{ProductID: "mug", Quantity: 3},
	})
	require.NoError(t, err)
	totals := c.Totals()
	assert.Equal(t, 1600.0, totals.Subtotal)
	assert.Equal(t, 50.0+72.0, totals.TaxTotal)
	assert.Equal(t, 1722.0, totals.GrandTotal)
}

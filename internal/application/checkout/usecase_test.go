package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domcheckout "github.com/Zhima-Mochi/minishop-storefront/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sessionID = "sess-1"

type fakeGateway struct {
	calls    atomic.Int32
	result   payment.Result
	err      error
	started  chan struct{}
	release  chan struct{}
	amount   decimal.Decimal
	currency string
}

func (g *fakeGateway) Initiate(ctx context.Context, amount decimal.Decimal, currency string) (payment.Result, error) {
	g.calls.Add(1)
	g.amount, g.currency = amount, currency
	if g.started != nil {
		close(g.started)
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return payment.Result{}, ctx.Err()
		}
	}
	return g.result, g.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	uc        *CheckoutUseCase
	carts     *memory.CartStore
	discounts *memory.DiscountStore
	gateway   *fakeGateway
	events    *recordingPublisher
}

func newFixture(t *testing.T, gw *fakeGateway, authorized bool) fixture {
	t.Helper()
	f := fixture{
		carts:     memory.NewCartStore(),
		discounts: memory.NewDiscountStore(),
		gateway:   gw,
		events:    &recordingPublisher{},
	}
	f.uc = NewCheckoutUseCase(Config{
		Carts:      f.carts,
		Discounts:  f.discounts,
		Gateway:    gw,
		Policy:     pricing.DefaultPolicy(),
		Authorizer: auth.AuthorizerFunc(func(context.Context) bool { return authorized }),
		Publisher:  f.events,
	}, nil)
	return f
}

func seedCart(t *testing.T, f fixture) {
	t.Helper()
	require.NoError(t, f.carts.Save(context.Background(), sessionID, domcart.Cart{
		{ID: 1, Title: "Backpack", UnitPrice: decimal.RequireFromString("109.95"), Quantity: 2},
	}))
}

func TestCheckoutSuccessClearsCart(t *testing.T) {
	f := newFixture(t, &fakeGateway{result: payment.Succeeded("pay_123")}, true)
	seedCart(t, f)
	require.NoError(t, f.discounts.Save(context.Background(), sessionID, &discount.Active{Code: "DEV", Percent: 5}))

	res, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.NoError(t, err)
	require.Equal(t, "pay_123", res.PaymentID)
	require.Equal(t, "INR", res.Currency)

	// 219.90 + 50 - 11.00 (5% of 219.90 = 10.995)
	require.Equal(t, "258.90", f.gateway.amount.StringFixed(2))
	require.Equal(t, "INR", f.gateway.currency)

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Empty(t, lines)
	_, ok := f.carts.Raw(sessionID)
	require.False(t, ok)

	st := f.uc.Status(context.Background(), sessionID)
	require.Equal(t, domcheckout.StatusIdle, st.Status())
	require.Equal(t, "pay_123", st.LastPaymentID)
	require.Empty(t, st.LastError)

	// the discount outlives the checkout
	active, err := f.discounts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, active)

	require.Equal(t, []string{"checkout.completed"}, f.events.names())
}

func TestCheckoutFailurePreservesCart(t *testing.T) {
	f := newFixture(t, &fakeGateway{result: payment.Failed("card declined")}, true)
	seedCart(t, f)

	_, err := f.uc.Checkout(context.Background(), sessionID, "usd")
	require.ErrorIs(t, err, ErrPaymentFailed)
	var perr *PaymentError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "card declined", perr.Message)
	require.Equal(t, "USD", f.gateway.currency)

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)

	st := f.uc.Status(context.Background(), sessionID)
	require.Equal(t, domcheckout.StatusIdle, st.Status())
	require.Equal(t, "card declined", st.LastError)
	require.Equal(t, []string{"checkout.failed"}, f.events.names())
}

func TestCheckoutTransportErrorIsFailure(t *testing.T) {
	f := newFixture(t, &fakeGateway{err: errors.New("dial tcp: refused")}, true)
	seedCart(t, f)

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.ErrorIs(t, err, ErrPaymentFailed)

	// a new attempt is allowed after a failure
	f.gateway.err = nil
	f.gateway.result = payment.Succeeded("pay_2")
	res, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.NoError(t, err)
	require.Equal(t, "pay_2", res.PaymentID)
	require.Equal(t, int32(2), f.gateway.calls.Load())
}

func TestCheckoutWhileProcessingIsRejected(t *testing.T) {
	gw := &fakeGateway{
		result:  payment.Succeeded("pay_123"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, gw, true)
	seedCart(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Checkout(context.Background(), sessionID, "")
		done <- err
	}()
	<-gw.started

	st := f.uc.Status(context.Background(), sessionID)
	require.Equal(t, domcheckout.StatusProcessing, st.Status())

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	require.Equal(t, int32(1), gw.calls.Load())

	close(gw.release)
	require.NoError(t, <-done)
	st = f.uc.Status(context.Background(), sessionID)
	require.Equal(t, domcheckout.StatusIdle, st.Status())
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t, &fakeGateway{result: payment.Succeeded("pay_1")}, true)

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Zero(t, f.gateway.calls.Load())
	require.Empty(t, f.events.names())
}

func TestCheckoutUnauthorized(t *testing.T) {
	f := newFixture(t, &fakeGateway{result: payment.Succeeded("pay_1")}, false)
	seedCart(t, f)

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, f.gateway.calls.Load())

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestStatusOfUnknownSessionIsIdle(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, true)
	st := f.uc.Status(context.Background(), "nobody")
	require.Equal(t, domcheckout.StatusIdle, st.Status())
	require.Empty(t, st.LastPaymentID)
}

type panickingGateway struct{}

func (panickingGateway) Initiate(context.Context, decimal.Decimal, string) (payment.Result, error) {
	panic("gateway exploded")
}

func TestCheckoutIgnoresCallerCancellationOncePaymentStarts(t *testing.T) {
	gw := &fakeGateway{
		result:  payment.Succeeded("pay_123"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, gw, true)
	seedCart(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *CheckoutResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.uc.Checkout(ctx, sessionID, "")
		done <- outcome{res, err}
	}()
	<-gw.started
	cancel()
	close(gw.release)

	out := <-done
	require.NoError(t, out.err)
	require.Equal(t, "pay_123", out.res.PaymentID)

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.True(t, lines.Empty())

	st := f.uc.Status(context.Background(), sessionID)
	require.Equal(t, "pay_123", st.LastPaymentID)
	require.Empty(t, st.LastError)
	require.Equal(t, []string{domcheckout.CompletedEvent{}.EventName()}, f.events.names())
}

func TestCheckoutGatewayTimeoutIsFailure(t *testing.T) {
	gw := &fakeGateway{result: payment.Succeeded("pay_late"), release: make(chan struct{})}
	f := newFixture(t, gw, true)
	f.uc.timeout = 20 * time.Millisecond
	seedCart(t, f)

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	require.Contains(t, payErr.Message, context.DeadlineExceeded.Error())

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestCheckoutGatewayPanicReleasesSession(t *testing.T) {
	f := newFixture(t, &fakeGateway{}, true)
	f.uc.gateway = panickingGateway{}
	seedCart(t, f)

	_, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.ErrorIs(t, err, ErrPaymentFailed)

	st := f.uc.Status(context.Background(), sessionID)
	require.NotEqual(t, domcheckout.StatusProcessing, st.Status())
	require.Contains(t, st.LastError, "gateway exploded")

	f.uc.gateway = &fakeGateway{result: payment.Succeeded("pay_2")}
	res, err := f.uc.Checkout(context.Background(), sessionID, "")
	require.NoError(t, err)
	require.Equal(t, "pay_2", res.PaymentID)
}

func TestCheckoutKeepsUnitsAddedWhileProcessing(t *testing.T) {
	gw := &fakeGateway{
		result:  payment.Succeeded("pay_123"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, gw, true)
	seedCart(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Checkout(context.Background(), sessionID, "")
		done <- err
	}()
	<-gw.started

	require.NoError(t, f.carts.Save(context.Background(), sessionID, domcart.Cart{
		{ID: 1, Title: "Backpack", UnitPrice: decimal.RequireFromString("109.95"), Quantity: 3},
		{ID: 9, Title: "Drive", UnitPrice: decimal.RequireFromString("64"), Quantity: 1},
	}))
	close(gw.release)
	require.NoError(t, <-done)

	lines, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	l1, _ := lines.Line(1)
	require.Equal(t, 1, l1.Quantity)
	l9, _ := lines.Line(9)
	require.Equal(t, 1, l9.Quantity)
}

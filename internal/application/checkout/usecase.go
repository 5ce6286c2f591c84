package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/session"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domcheckout "github.com/Zhima-Mochi/minishop-storefront/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService  = "checkout-service"
	useCaseCheckout  = "checkout.execute"
	checkoutSpanName = "Checkout"
	spanPrefix       = "UC."
	defaultCurrency  = "INR"
	publishTimeout   = 300 * time.Millisecond

	defaultGatewayTimeout = 15 * time.Second
)

var (
	ErrEmptyCart          = errors.New("checkout: cart is empty")
	ErrSessionRequired    = errors.New("checkout: session id is required")
	ErrPaymentFailed      = errors.New("checkout: payment failed")
	ErrCheckoutInProgress = domcheckout.ErrInProgress
	ErrUnauthorized       = auth.ErrUnauthorized
)

// PaymentError carries the gateway's failure message back to the caller.
type PaymentError struct {
	Message string
}

func (e *PaymentError) Error() string { return ErrPaymentFailed.Error() + ": " + e.Message }

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }

type CheckoutInput struct {
	SessionID string
	Currency  string
}

type CheckoutResult struct {
	PaymentID string
	Currency  string
	Lines     domcart.Cart
	Pricing   pricing.Snapshot
}

// CheckoutUseCase drives one payment round-trip per attempt and keeps a Processing guard per
// session, so at most one payment request is outstanding for a cart.
type CheckoutUseCase struct {
	carts      domcart.Store
	discounts  discount.Store
	gateway    payment.Gateway
	policy     pricing.Policy
	authorizer auth.Authorizer
	publisher  domoutbox.Publisher
	currency   string
	timeout    time.Duration
	locks      *session.Locks

	mu       sync.Mutex
	attempts map[string]*domcheckout.Attempt

	tracer     observability.Tracer
	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
	outcomes   observability.Counter // checkout_outcomes_total{outcome}
}

func NewCheckoutUseCase(cfg Config, tel observability.Observability) *CheckoutUseCase {
	tracer, logger, metrics := observability.Resolve(tel)

	currency := strings.TrimSpace(cfg.DefaultCurrency)
	if currency == "" {
		currency = defaultCurrency
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = auth.ContextAuthorizer{}
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	locks := cfg.Locks
	if locks == nil {
		locks = session.NewLocks()
	}

	return &CheckoutUseCase{
		carts:      cfg.Carts,
		discounts:  cfg.Discounts,
		gateway:    cfg.Gateway,
		policy:     cfg.Policy,
		authorizer: authorizer,
		publisher:  cfg.Publisher,
		currency:   currency,
		timeout:    timeout,
		locks:      locks,
		attempts:   make(map[string]*domcheckout.Attempt),
		tracer:     tracer,
		log:        logger.With(observability.F("service", checkoutService)),
		reqCounter: metrics.Counter(observability.MUsecaseRequests),
		durHist:    metrics.Histogram(observability.MUsecaseDuration),
		outcomes:   metrics.Counter(observability.MCheckoutOutcomes),
	}
}

// Execute prices the session's cart and charges its grand total. On success the cart is
// cleared; on failure it is left as it was and the gateway message is returned in a
// *PaymentError.
func (uc *CheckoutUseCase) Execute(ctx context.Context, cmd CheckoutInput) (_ *CheckoutResult, err error) {
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = uc.currency
	}

	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseCheckout),
		observability.F("session_id", cmd.SessionID),
		observability.F("currency", currency),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+checkoutSpanName,
		attribute.String("use_case", useCaseCheckout),
		attribute.String("cart.session_id", cmd.SessionID),
		attribute.String("payment.currency", currency),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var paymentID, failureReason string
	var amount string

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		uc.durHist.Observe(latency,
			observability.L("use_case", useCaseCheckout),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if amount != "" {
			fields = append(fields, observability.F("amount", amount))
		}
		if paymentID != "" {
			fields = append(fields, observability.F("payment_id", paymentID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if failureReason != "" {
			fields = append(fields, observability.F("failure_reason", failureReason))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if !uc.authorizer.IsAuthorized(ctx) {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, ErrUnauthorized
	}
	if cmd.SessionID == "" {
		outcome, statusText = "error", "SESSION_REQUIRED"
		return nil, ErrSessionRequired
	}

	lines, err := uc.carts.Load(ctx, cmd.SessionID)
	if err != nil {
		if !errors.Is(err, domcart.ErrCorrupt) {
			outcome, statusText = "error", "CART_LOAD_FAILED"
			return nil, fmt.Errorf("checkout: load cart: %w", err)
		}
		logger.Warn("cart_store_corrupt", observability.F("error", err.Error()))
		lines = domcart.Cart{}
	}
	if lines.Empty() {
		outcome, statusText = "error", "EMPTY_CART"
		return nil, ErrEmptyCart
	}

	active, derr := uc.discounts.Load(ctx, cmd.SessionID)
	if derr != nil {
		logger.Warn("discount_load_failed", observability.F("error", derr.Error()))
		active = nil
	}
	snap := uc.policy.Compute(lines, active)
	amount = snap.GrandTotal.StringFixed(2)
	span.SetAttributes(
		attribute.String("payment.amount", amount),
		attribute.Int("cart.count", lines.Count()),
	)

	if err := uc.begin(cmd.SessionID); err != nil {
		outcome, statusText = "error", "CHECKOUT_IN_PROGRESS"
		return nil, err
	}
	settled := false
	defer func() {
		if settled {
			return
		}
		r := recover()
		reason := fmt.Sprintf("checkout aborted: %v", r)
		uc.finish(cmd.SessionID, func(a *domcheckout.Attempt) error { return a.Fail(reason) })
		logger.Error("checkout_aborted", observability.F("reason", reason))
		outcome, statusText, failureReason = "error", "CHECKOUT_ABORTED", reason
		err = &PaymentError{Message: reason}
	}()

	// Once the payment is in flight only success or failure may end the attempt, so the rest
	// of the call ignores the caller's cancellation.
	settleCtx := context.WithoutCancel(ctx)

	res := uc.initiate(settleCtx, snap.GrandTotal, currency)
	if !res.OK() {
		failureReason = res.Message
		uc.finish(cmd.SessionID, func(a *domcheckout.Attempt) error { return a.Fail(res.Message) })
		settled = true
		uc.outcomes.Add(1, observability.L("outcome", string(payment.StatusFailed)))
		uc.publish(settleCtx, logger, span, domcheckout.NewFailedEvent(cmd.SessionID, currency, snap, res.Message))
		outcome, statusText = "error", "PAYMENT_FAILED"
		return nil, &PaymentError{Message: res.Message}
	}

	paymentID = res.PaymentID
	span.SetAttributes(attribute.String("payment.id", paymentID))

	// The charge went through, so a store failure here is reported but does not fail the call.
	if err := uc.clearPaid(settleCtx, cmd.SessionID, lines); err != nil {
		statusText = "CART_CLEAR_FAILED"
		span.RecordError(err)
		logger.Error("cart_clear_failed", observability.F("error", err.Error()))
	}
	uc.finish(cmd.SessionID, func(a *domcheckout.Attempt) error { return a.Succeed(paymentID) })
	settled = true
	uc.outcomes.Add(1, observability.L("outcome", string(payment.StatusSucceeded)))
	uc.publish(settleCtx, logger, span, domcheckout.NewCompletedEvent(cmd.SessionID, paymentID, currency, lines, snap))

	return &CheckoutResult{
		PaymentID: paymentID,
		Currency:  currency,
		Lines:     lines,
		Pricing:   snap,
	}, nil
}

// Checkout is the positional form of Execute.
func (uc *CheckoutUseCase) Checkout(ctx context.Context, sessionID, currency string) (*CheckoutResult, error) {
	return uc.Execute(ctx, CheckoutInput{SessionID: sessionID, Currency: currency})
}

// Status reports the checkout state of a session. Sessions that never checked out are Idle.
func (uc *CheckoutUseCase) Status(_ context.Context, sessionID string) domcheckout.Attempt {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	a, ok := uc.attempts[sessionID]
	if !ok {
		return *domcheckout.NewAttempt(sessionID)
	}
	return a.Snapshot()
}

func (uc *CheckoutUseCase) begin(sessionID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	a, ok := uc.attempts[sessionID]
	if !ok {
		a = domcheckout.NewAttempt(sessionID)
		uc.attempts[sessionID] = a
	}
	return a.Begin()
}

func (uc *CheckoutUseCase) finish(sessionID string, fn func(*domcheckout.Attempt) error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if a, ok := uc.attempts[sessionID]; ok {
		if err := fn(a); err != nil {
			uc.log.Error("checkout_state_transition_failed",
				observability.F("session_id", sessionID),
				observability.F("error", err.Error()),
			)
		}
	}
}

// initiate calls the gateway under its own deadline. Transport errors and panics both
// become a Failed result.
func (uc *CheckoutUseCase) initiate(ctx context.Context, amount decimal.Decimal, currency string) (res payment.Result) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			res = payment.Failed(fmt.Sprintf("payment gateway error: %v", r))
		}
	}()

	res, err := uc.gateway.Initiate(ctx, amount, currency)
	if err != nil {
		return payment.Failed(err.Error())
	}
	return res
}

// clearPaid removes the paid lines under the session lock. Units added while the payment
// was in flight stay in the cart.
func (uc *CheckoutUseCase) clearPaid(ctx context.Context, sessionID string, paid domcart.Cart) error {
	defer uc.locks.Lock(sessionID)()

	current, err := uc.carts.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, domcart.ErrCorrupt) {
		return fmt.Errorf("checkout: reload cart: %w", err)
	}
	return uc.carts.Save(ctx, sessionID, current.Without(paid))
}

// publish is best-effort; the checkout outcome is already decided.
func (uc *CheckoutUseCase) publish(ctx context.Context, logger observability.Logger, span trace.Span, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	ctxPub, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(ctxPub, e); err != nil {
		span.RecordError(err)
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

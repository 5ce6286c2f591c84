package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/session"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	cartService = "cart-service"
	spanPrefix  = "UC."

	useCaseCartGet         = "cart.get"
	useCaseCartAdd         = "cart.add"
	useCaseCartSetQuantity = "cart.set_quantity"
	useCaseCartAdjust      = "cart.adjust_quantity"
	useCaseCartRemoveLine  = "cart.remove_line"
	useCaseCartClear       = "cart.clear"
	useCaseDiscountApply   = "discount.apply"
	useCaseDiscountRemove  = "discount.remove"
)

var (
	ErrSessionRequired     = errors.New("cart: session id is required")
	ErrRepository          = errors.New("cart: store failure")
	ErrUnauthorized        = auth.ErrUnauthorized
	ErrInvalidDiscountCode = discount.ErrInvalidCode
	ErrLineNotFound        = domain.ErrLineNotFound
	ErrProductNotFound     = catalog.ErrProductNotFound
)

// View is what callers see of a session's cart: the lines plus the pricing derived from them.
type View struct {
	Lines    domain.Cart
	Count    int
	Discount *discount.Active
	Pricing  pricing.Snapshot
}

type AddResult struct {
	View
	CapReached bool
	Message    string
}

// Service owns every write to the session cart and the active discount.
type Service struct {
	carts      domain.Store
	discounts  discount.Store
	catalog    catalog.Catalog
	codes      discount.Table
	policy     pricing.Policy
	authorizer auth.Authorizer
	multiplier decimal.Decimal
	locks      *session.Locks

	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewService(cfg Config, tel observability.Observability) *Service {
	tracer, logger, metrics := observability.Resolve(tel)

	table := cfg.Codes
	if table == nil {
		table = discount.DefaultTable()
	}
	multiplier := cfg.PriceMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = auth.ContextAuthorizer{}
	}
	locks := cfg.Locks
	if locks == nil {
		locks = session.NewLocks()
	}

	return &Service{
		carts:        cfg.Carts,
		discounts:    cfg.Discounts,
		catalog:      cfg.Catalog,
		codes:        table,
		policy:       cfg.Policy,
		authorizer:   authorizer,
		multiplier:   multiplier,
		locks:        locks,
		tracer:       tracer,
		log:          logger.With(observability.F("service", cartService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Get returns the current cart. Read failures never surface: the cart falls back to empty.
func (s *Service) Get(ctx context.Context, sessionID string) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseCartGet, "GetCart", sessionID)
	defer func() { c.end(err) }()

	if sessionID == "" {
		return nil, c.fail("SESSION_REQUIRED", ErrSessionRequired)
	}
	lines, _ := s.loadCart(ctx, c, sessionID, false)
	return s.view(ctx, c, sessionID, lines), nil
}

// Add puts one unit of productID into the cart, resolving the product through the catalog.
func (s *Service) Add(ctx context.Context, sessionID string, productID int64) (_ *AddResult, err error) {
	ctx, c := s.begin(ctx, useCaseCartAdd, "AddToCart", sessionID, attribute.Int64("cart.product_id", productID))
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, c.fail("PRODUCT_NOT_FOUND", err)
		}
		return nil, c.fail("CATALOG_LOOKUP_FAILED", fmt.Errorf("cart: catalog: %w", err))
	}

	var capReached bool
	view, err := s.mutate(ctx, c, sessionID, func(lines domain.Cart) (domain.Cart, error) {
		var addErr error
		lines, capReached, addErr = lines.Add(s.lineFrom(product))
		return lines, addErr
	})
	if err != nil {
		return nil, err
	}

	res := &AddResult{View: *view, CapReached: capReached}
	if capReached {
		c.status = "CAP_REACHED"
		res.Message = domain.CapReachedMessage
	}
	return res, nil
}

// SetQuantity replaces the quantity of one line; values are clamped and 0 removes the line.
func (s *Service) SetQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseCartSetQuantity, "SetQuantity", sessionID,
		attribute.Int64("cart.product_id", productID),
		attribute.Int("cart.quantity", quantity),
	)
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, c, sessionID, func(lines domain.Cart) (domain.Cart, error) {
		return lines.SetQuantity(productID, quantity)
	})
}

// AdjustQuantity applies a +/- delta to one line through the quantity policy.
func (s *Service) AdjustQuantity(ctx context.Context, sessionID string, productID int64, delta int) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseCartAdjust, "AdjustQuantity", sessionID,
		attribute.Int64("cart.product_id", productID),
		attribute.Int("cart.delta", delta),
	)
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, c, sessionID, func(lines domain.Cart) (domain.Cart, error) {
		return lines.Adjust(productID, delta)
	})
}

func (s *Service) RemoveLine(ctx context.Context, sessionID string, productID int64) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseCartRemoveLine, "RemoveLine", sessionID, attribute.Int64("cart.product_id", productID))
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, c, sessionID, func(lines domain.Cart) (domain.Cart, error) {
		return lines.SetQuantity(productID, 0)
	})
}

func (s *Service) Clear(ctx context.Context, sessionID string) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseCartClear, "ClearCart", sessionID)
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	defer s.locks.Lock(sessionID)()
	if err := s.carts.Save(ctx, sessionID, domain.Cart{}); err != nil {
		return nil, c.fail("CART_SAVE_FAILED", fmt.Errorf("%w: save: %w", ErrRepository, err))
	}
	return s.view(ctx, c, sessionID, domain.Cart{}), nil
}

// ApplyDiscount activates code for the session. An unknown code clears whatever discount
// was active before and returns ErrInvalidDiscountCode.
func (s *Service) ApplyDiscount(ctx context.Context, sessionID, code string) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseDiscountApply, "ApplyDiscount", sessionID)
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	defer s.locks.Lock(sessionID)()

	active, lookupErr := s.codes.Lookup(code)
	var next *discount.Active
	if lookupErr == nil {
		next = &active
		c.span.SetAttributes(attribute.String("discount.code", active.Code), attribute.Int("discount.percent", active.Percent))
	}
	if err := s.discounts.Save(ctx, sessionID, next); err != nil {
		return nil, c.fail("DISCOUNT_SAVE_FAILED", fmt.Errorf("%w: save discount: %w", ErrRepository, err))
	}
	if lookupErr != nil {
		return nil, c.fail("INVALID_DISCOUNT_CODE", lookupErr)
	}

	lines, _ := s.loadCart(ctx, c, sessionID, false)
	return s.buildView(lines, next), nil
}

// RemoveDiscount clears the active discount. It is idempotent.
func (s *Service) RemoveDiscount(ctx context.Context, sessionID string) (_ *View, err error) {
	ctx, c := s.begin(ctx, useCaseDiscountRemove, "RemoveDiscount", sessionID)
	defer func() { c.end(err) }()

	if err := s.guard(ctx, c, sessionID); err != nil {
		return nil, err
	}
	defer s.locks.Lock(sessionID)()
	if err := s.discounts.Save(ctx, sessionID, nil); err != nil {
		return nil, c.fail("DISCOUNT_SAVE_FAILED", fmt.Errorf("%w: save discount: %w", ErrRepository, err))
	}
	lines, _ := s.loadCart(ctx, c, sessionID, false)
	return s.buildView(lines, nil), nil
}

func (s *Service) guard(ctx context.Context, c *call, sessionID string) error {
	if !s.authorizer.IsAuthorized(ctx) {
		return c.fail("UNAUTHORIZED", ErrUnauthorized)
	}
	if sessionID == "" {
		return c.fail("SESSION_REQUIRED", ErrSessionRequired)
	}
	return nil
}

// mutate is the single read-modify-write path. It holds the session lock, so the whole
// cart is replaced without losing a concurrent update.
func (s *Service) mutate(ctx context.Context, c *call, sessionID string, fn func(domain.Cart) (domain.Cart, error)) (*View, error) {
	defer s.locks.Lock(sessionID)()

	lines, err := s.loadCart(ctx, c, sessionID, true)
	if err != nil {
		return nil, c.fail("CART_LOAD_FAILED", err)
	}
	next, err := fn(lines)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLineNotFound):
			return nil, c.fail("LINE_NOT_FOUND", err)
		case errors.Is(err, domain.ErrInvalidProduct):
			return nil, c.fail("INVALID_PRODUCT", err)
		default:
			return nil, c.fail("CART_MUTATION_FAILED", err)
		}
	}
	if err := s.carts.Save(ctx, sessionID, next); err != nil {
		return nil, c.fail("CART_SAVE_FAILED", fmt.Errorf("%w: save: %w", ErrRepository, err))
	}
	return s.view(ctx, c, sessionID, next), nil
}

// loadCart treats a corrupt value as an empty cart. Other load errors are tolerated for
// reads and returned for writes, so a store outage cannot overwrite a cart with a blank one.
func (s *Service) loadCart(ctx context.Context, c *call, sessionID string, strict bool) (domain.Cart, error) {
	lines, err := s.carts.Load(ctx, sessionID)
	switch {
	case err == nil:
		return lines, nil
	case errors.Is(err, domain.ErrCorrupt):
		c.logger.Warn("cart_store_corrupt", observability.F("error", err.Error()))
		c.span.AddEvent("cart.store_corrupt")
		return domain.Cart{}, nil
	case !strict:
		c.logger.Warn("cart_load_failed", observability.F("error", err.Error()))
		return domain.Cart{}, nil
	default:
		return nil, fmt.Errorf("%w: load: %w", ErrRepository, err)
	}
}

func (s *Service) view(ctx context.Context, c *call, sessionID string, lines domain.Cart) *View {
	active, err := s.discounts.Load(ctx, sessionID)
	if err != nil {
		c.logger.Warn("discount_load_failed", observability.F("error", err.Error()))
		active = nil
	}
	return s.buildView(lines, active)
}

func (s *Service) buildView(lines domain.Cart, active *discount.Active) *View {
	if lines == nil {
		lines = domain.Cart{}
	}
	return &View{
		Lines:    lines,
		Count:    lines.Count(),
		Discount: active,
		Pricing:  s.policy.Compute(lines, active),
	}
}

func (s *Service) lineFrom(p catalog.Product) domain.Line {
	return domain.Line{
		ID:        p.ID,
		Title:     p.Title,
		UnitPrice: p.Price.Mul(s.multiplier).Round(2),
		ImageRef:  p.Image,
	}
}

// call carries the per-invocation observability state of one use case.
type call struct {
	s       *Service
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	traceID string
	spanID  string
}

func (s *Service) begin(ctx context.Context, useCase, spanName, sessionID string, attrs ...attribute.KeyValue) (context.Context, *call) {
	attrs = append([]attribute.KeyValue{
		attribute.String("use_case", useCase),
		attribute.String("cart.session_id", sessionID),
	}, attrs...)
	ctx, span := s.tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", useCase),
		observability.F("session_id", sessionID),
	)
	c := &call{
		s:       s,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		c.traceID, c.spanID = sc.TraceID().String(), sc.SpanID().String()
	}
	return ctx, c
}

func (c *call) fail(status string, err error) error {
	c.outcome, c.status = "error", status
	return err
}

func (c *call) end(err error) {
	if err != nil && c.outcome == "success" {
		c.outcome, c.status = "error", "INTERNAL"
	}
	lat := time.Since(c.start).Seconds()

	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, c.status)
	} else {
		c.span.SetStatus(codes.Ok, c.status)
	}
	c.span.End()

	c.s.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.s.durHistogram.Observe(lat,
		observability.L("use_case", c.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}
	if c.traceID != "" {
		fields = append(fields,
			observability.F("trace_id", c.traceID),
			observability.F("span_id", c.spanID),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	c.logger.Info("use_case_done", fields...)
}

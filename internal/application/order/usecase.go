package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderRecord = "order.record"
	useCaseOrderList   = "order.list"
	spanPrefix         = "UC."
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// RecordOrderUseCase turns a paid checkout into an order record. The payment id is the
// idempotency key, so replays of the same checkout return the existing order.
type RecordOrderUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	tracer      observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewRecordOrderUseCase(
	repo domain.Repository,
	idGen IDGenerator,
	tel observability.Observability,
) *RecordOrderUseCase {
	tracer, logger, metrics := observability.Resolve(tel)
	return &RecordOrderUseCase{
		repo:         repo,
		idGenerator:  idGen,
		tracer:       tracer,
		log:          logger.With(observability.F("service", orderService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

type RecordOrderInput struct {
	SessionID string
	PaymentID string
	Currency  string
	Lines     domcart.Cart
	Pricing   pricing.Snapshot
}

type RecordOrderResult struct {
	OrderID string
	Status  domain.Status
	Replay  bool
}

func (uc *RecordOrderUseCase) Execute(ctx context.Context, cmd RecordOrderInput) (_ *RecordOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseOrderRecord),
		observability.F("payment_id", cmd.PaymentID),
	)

	var orderID string
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"RecordOrder",
		attribute.String("use_case", useCaseOrderRecord),
		attribute.String("payment.id", cmd.PaymentID),
		attribute.String("cart.session_id", cmd.SessionID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderRecord),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseOrderRecord),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.SessionID == "" {
		outcome, statusText = "error", "SESSION_REQUIRED"
		return nil, newValidation("session id is required")
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	if existing, ok, lerr := uc.findReplay(ctx, cmd.PaymentID); lerr != nil {
		outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
		return nil, wrapRepositoryError(lerr)
	} else if ok {
		orderID = existing.ID
		statusText = "IDEMPOTENT_REPLAY"
		span.AddEvent("order.idempotent_replay",
			trace.WithAttributes(attribute.String("order.id", orderID)),
		)
		return &RecordOrderResult{OrderID: existing.ID, Status: existing.Status, Replay: true}, nil
	}

	orderID = uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, cmd.SessionID, cmd.PaymentID, cmd.Currency, cmd.Lines, cmd.Pricing)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}

	if err := uc.repo.Insert(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			if existing, ok, _ := uc.findReplay(ctx, cmd.PaymentID); ok {
				orderID = existing.ID
				statusText = "IDEMPOTENT_REPLAY"
				return &RecordOrderResult{OrderID: existing.ID, Status: existing.Status, Replay: true}, nil
			}
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.recorded",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	return &RecordOrderResult{OrderID: entity.ID, Status: entity.Status}, nil
}

func (uc *RecordOrderUseCase) findReplay(ctx context.Context, paymentID string) (*domain.Order, bool, error) {
	if paymentID == "" {
		return nil, false, nil
	}
	existing, err := uc.repo.FindByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		return existing, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// ListOrdersUseCase returns the orders recorded for one session.
type ListOrdersUseCase struct {
	repo         domain.Repository
	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewListOrdersUseCase(repo domain.Repository, tel observability.Observability) *ListOrdersUseCase {
	tracer, logger, metrics := observability.Resolve(tel)
	return &ListOrdersUseCase{
		repo:         repo,
		tracer:       tracer,
		log:          logger.With(observability.F("service", orderService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, sessionID string) (_ []*domain.Order, err error) {
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"ListOrders",
		attribute.String("use_case", useCaseOrderList),
		attribute.String("cart.session_id", sessionID),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderList),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseOrderList),
		)
	}()

	if sessionID == "" {
		return nil, newValidation("session id is required")
	}
	orders, err := uc.repo.ListBySession(ctx, sessionID)
	if err != nil {
		logctx.FromOr(ctx, uc.log).Error("order_list_failed", observability.F("error", err.Error()))
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

var ErrValidation = errors.New("validation")

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

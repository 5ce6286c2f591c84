package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	domcheckout "github.com/Zhima-Mochi/minishop-storefront/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/minishop-storefront/internal/presentation/worker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const workerService = "order-worker"

// Worker records orders from checkout outcomes published on the outbox.
type Worker struct {
	subscriber domoutbox.Subscriber
	record     application.UseCase[RecordOrderInput, *RecordOrderResult]
	tel        observability.Observability
	tracer     observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	record application.UseCase[RecordOrderInput, *RecordOrderResult],
	tel observability.Observability,
) *Worker {
	tracer, logger, metrics := observability.Resolve(tel)
	return &Worker{
		subscriber:   subscriber,
		record:       record,
		tel:          tel,
		tracer:       tracer,
		log:          logger.With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.record == nil {
		return
	}
	w.subscriber.Subscribe(domcheckout.CompletedEvent{}.EventName(), w.handleCheckoutCompleted)
	w.subscriber.Subscribe(domcheckout.FailedEvent{}.EventName(), w.handleCheckoutFailed)
}

func (w *Worker) handleCheckoutCompleted(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "order.worker.checkout_completed"
	evt, ok := e.(domcheckout.CompletedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tracer.Start(ctx, spanPrefix+"CheckoutCompleted",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("payment.id", evt.PaymentID),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	sc := trace.SpanContextFromContext(ctx)
	ctx = workerpresentation.WithEventContext(ctx, w.log, w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"use_case": useCase,
		"event":    e.EventName(),
	})

	defer func() {
		w.observe(useCase, outcome, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	res, err := w.record.Execute(ctx, RecordOrderInput{
		SessionID: evt.SessionID,
		PaymentID: evt.PaymentID,
		Currency:  evt.Currency,
		Lines:     evt.Lines,
		Pricing:   evt.Pricing,
	})
	if err != nil {
		outcome, status = "error", "ORDER_RECORD_FAILED"
		return fmt.Errorf("worker: record order: %w", err)
	}
	if res.Replay {
		status = "IDEMPOTENT_REPLAY"
	}
	span.SetAttributes(attribute.String("order.id", res.OrderID))
	return nil
}

// handleCheckoutFailed keeps an audit line for declined payments. No order is recorded.
func (w *Worker) handleCheckoutFailed(ctx context.Context, e domoutbox.Event) error {
	const useCase = "order.worker.checkout_failed"
	evt, ok := e.(domcheckout.FailedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	start := time.Now()
	w.log.Warn("checkout_payment_failed",
		observability.F("session_id", evt.SessionID),
		observability.F("currency", evt.Currency),
		observability.F("amount", evt.Pricing.GrandTotal.StringFixed(2)),
		observability.F("reason", evt.Reason),
	)
	w.observe(useCase, "success", time.Since(start).Seconds())
	return nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *Worker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}

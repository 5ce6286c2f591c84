package workerpresentation

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithEventContextAttachesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.Wrap(zap.New(core))

	traceID := trace.TraceID{1, 2, 3}
	spanID := trace.SpanID{4, 5, 6}
	ctx := WithEventContext(context.Background(), base, nil, traceID, spanID, map[string]string{
		"event":    "checkout.completed",
		"event_id": "evt-1",
		"empty":    "",
	})

	logger := logctx.From(ctx)
	require.NotNil(t, logger)
	logger.Info("handled")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "evt-1", fields["event_id"])
	require.Equal(t, "checkout.completed", fields["event"])
	require.Equal(t, traceID.String(), fields["trace_id"])
	require.Equal(t, spanID.String(), fields["span_id"])
	require.NotContains(t, fields, "empty")
}

func TestWithEventContextWithoutLogger(t *testing.T) {
	ctx := WithEventContext(context.Background(), nil, nil, trace.TraceID{}, trace.SpanID{}, nil)
	require.NotNil(t, logctx.From(ctx))
}

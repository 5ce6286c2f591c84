package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrapForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core)).With(observability.F("service", "cart-service"))

	l.Warn("cart_store_corrupt", observability.F("session_id", "s-1"), observability.F("error", errors.New("bad json")))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "cart_store_corrupt", entries[0].Message)
	require.Equal(t, "cart-service", ctx["service"])
	require.Equal(t, "s-1", ctx["session_id"])
	require.Equal(t, "bad json", ctx["error"])
}

func TestWrapNilIsSafe(t *testing.T) {
	require.NotPanics(t, func() {
		Wrap(nil).Info("noop")
	})
}

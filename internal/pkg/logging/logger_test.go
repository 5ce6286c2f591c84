package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerDuplicatesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storefront.log")
	t.Setenv("LOG_FILE", path)

	l, err := NewLogger("storefront", "test")
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
	require.Contains(t, string(data), `"service":"storefront"`)
}

func TestWithTraceNormalisesEmptyIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithTrace(zap.New(core), "", SystemSpanID).Info("boot")

	ctx := logs.All()[0].ContextMap()
	require.Equal(t, "unknown", ctx["trace_id"])
	require.Equal(t, "system", ctx["span_id"])
}

func TestNewLoggerHonoursLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	l, err := NewLogger("storefront", "dev")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zap.InfoLevel))
	require.True(t, l.Core().Enabled(zap.WarnLevel))

	t.Setenv("LOG_LEVEL", "loud")
	_, err = NewLogger("storefront", "dev")
	require.Error(t, err)
}

func TestLevelForEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	lvl, err := levelFor("dev")
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, lvl)

	lvl, err = levelFor("prod")
	require.NoError(t, err)
	require.Equal(t, zapcore.InfoLevel, lvl)
}

func TestNewLoggerCarriesInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "")

	l, err := NewLogger("storefront", "prod")
	require.NoError(t, err)
	l.Info("ready")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"instance":`)
	require.Contains(t, string(data), `"env":"prod"`)
}

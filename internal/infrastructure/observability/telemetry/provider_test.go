package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupInstallsRecordingProvider(t *testing.T) {
	shutdown, err := Setup("storefront-test", "test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	defer span.End()

	require.True(t, span.SpanContext().IsValid())
	require.True(t, span.IsRecording())
}

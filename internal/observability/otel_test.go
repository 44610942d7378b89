package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), TracingConfig{}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInjectExtractRoundTrip(t *testing.T) {
	_, err := Setup(context.Background(), TracingConfig{}, "test")
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := Inject(ctx, nil)
	require.Contains(t, headers, "traceparent")

	got := trace.SpanContextFromContext(Extract(context.Background(), headers))
	require.True(t, got.IsRemote())
	require.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestExtractWithoutHeaders(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, ctx, Extract(ctx, nil))
}

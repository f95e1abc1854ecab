package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingNoneIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Exporter: "none"}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRejectsBadRatio(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Exporter: "stdout", SampleRatio: 1.5}, "test")
	require.Error(t, err)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Exporter: "zipkin", SampleRatio: 1}, "test")
	require.Error(t, err)
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := initTracing(ctx, config.TracingConfig{Exporter: "stdout", ServiceName: "ewm-test", SampleRatio: 1}, "test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "decide")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "decide")
}

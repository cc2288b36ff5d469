package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestStartTracingDisabledInstallsPropagation(t *testing.T) {
	stop, err := StartTracing(context.Background(), TracingConfig{ServiceName: "leafmarket-checkout"})
	require.NoError(t, err)
	require.NoError(t, stop(context.Background()))
	require.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestStartTracingNoneExporter(t *testing.T) {
	stop, err := StartTracing(context.Background(), TracingConfig{Enabled: true, Exporter: " None "})
	require.NoError(t, err)
	require.NotNil(t, stop)
}

func TestStartTracingRejectsUnknownExporter(t *testing.T) {
	stop, err := StartTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "jaeger"})
	require.ErrorContains(t, err, "unsupported tracing exporter: jaeger")
	require.NotNil(t, stop)
}

func TestTracingSampler(t *testing.T) {
	cases := map[float64]string{
		0:    "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		2.5:  "AlwaysOnSampler",
		0.25: "TraceIDRatioBased{0.25}",
	}
	for ratio, root := range cases {
		desc := TracingConfig{SamplingRatio: ratio}.Sampler().Description()
		require.Contains(t, desc, "ParentBased{root:"+root, ratio)
	}
}

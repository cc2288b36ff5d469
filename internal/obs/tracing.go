package obs

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig describes the tracer provider for one checkout process (api or worker).
type TracingConfig struct {
	ServiceName   string
	Component     string
	Environment   string
	Enabled       bool
	Exporter      string
	Endpoint      string
	SamplingRatio float64
}

// Sampler samples new traces at SamplingRatio and follows the parent decision for
// requests that arrive with a traceparent. Ratios outside (0,1) sample everything.
func (c TracingConfig) Sampler() sdktrace.Sampler {
	if c.SamplingRatio <= 0 || c.SamplingRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SamplingRatio))
}

func (c TracingConfig) exporter() string {
	name := strings.ToLower(strings.TrimSpace(c.Exporter))
	if name == "" {
		return "otlp"
	}
	return name
}

// StartTracing installs W3C propagation and, when enabled, a batching OTLP tracer
// provider. The returned stop flushes pending spans; it is never nil.
func StartTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.exporter() {
	case "none", "off", "disabled":
		return noop, nil
	case "otlp":
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return noop, fmt.Errorf("otlp exporter: %w", err)
		}
		exporter = exp
	default:
		return noop, fmt.Errorf("unsupported tracing exporter: %s", cfg.exporter())
	}

	res, err := checkoutResource(ctx, cfg)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return noop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.Sampler()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func checkoutResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	}
	if cfg.Component != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceInstanceIDKey.String(cfg.ServiceName+"/"+cfg.Component)))
	}
	return resource.New(ctx, attrs...)
}

// Package telemetry provides distributed tracing setup using OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var tracingEnabled atomic.Bool

// InitTracing installs an OTLP/gRPC tracer provider when OTEL_EXPORTER_OTLP_ENDPOINT
// is set; otherwise tracing stays a no-op. OTEL_TRACES_SAMPLER_ARG (0..1, default 1)
// sets the parent-based sampling ratio and OTEL_EXPORTER_OTLP_INSECURE=false enables TLS.
// The returned function flushes and stops the provider.
func InitTracing(serviceName, serviceVersion string) (func(), error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Info("tracing disabled: OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return func() {}, nil
	}
	ratio, err := samplerRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if !strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "false") {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	tracingEnabled.Store(true)
	slog.Info("tracing initialized", slog.String("service", serviceName), slog.String("endpoint", endpoint), slog.Float64("sample_ratio", ratio))

	return func() {
		if !tracingEnabled.CompareAndSwap(true, false) {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.Any("err", err))
		}
	}, nil
}

func samplerRatio(v string) (float64, error) {
	if strings.TrimSpace(v) == "" {
		return 1, nil
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || r < 0 || r > 1 {
		return 0, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG %q: want a ratio between 0 and 1", v)
	}
	return r, nil
}

// IsTracingEnabled returns whether tracing is active.
func IsTracingEnabled() bool {
	return tracingEnabled.Load()
}

// StartSpan starts a span on the named tracer, tagging it with the correlation ID in ctx.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if corr := GetCorrelation(ctx); corr != "" {
		attrs = append(attrs, attribute.String("correlation_id", corr))
	}
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// ErrorStatus returns the span status pair for a failed operation.
func ErrorStatus(msg string) (codes.Code, string) {
	return codes.Error, msg
}

// SetSpanHTTPStatus records the response status code on span.
func SetSpanHTTPStatus(span trace.Span, code int) {
	span.SetAttributes(attribute.Int("http.status_code", code))
}

func HTTPMethodAttr(method string) attribute.KeyValue { return attribute.String("http.method", method) }
func HTTPRouteAttr(route string) attribute.KeyValue   { return attribute.String("http.route", route) }
func HTTPURLAttr(url string) attribute.KeyValue       { return attribute.String("http.url", url) }

package telemetry

import (
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingDisabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := InitTracing("probe-tender", "test")
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	shutdown()
	if IsTracingEnabled() {
		t.Error("tracing enabled without endpoint")
	}
}

func TestInitTracingRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "2")
	if _, err := InitTracing("probe-tender", "test"); err == nil {
		t.Fatal("expected error for sampler ratio 2")
	}
}

func TestSamplerRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 1, false},
		{" 0.25 ", 0.25, false},
		{"0", 0, false},
		{"1.5", 0, true},
		{"-1", 0, true},
		{"half", 0, true},
	}
	for _, tt := range tests {
		got, err := samplerRatio(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("samplerRatio(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("samplerRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecordErrorSetsStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := newTestProvider(rec)
	_, span := tp.Tracer("test").Start(t.Context(), "op")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if got := ended[0].Status().Description; got != "boom" {
		t.Errorf("status description = %q, want boom", got)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("events = %d, want 1 recorded error", len(ended[0].Events()))
	}
}

func newTestProvider(rec *tracetest.SpanRecorder) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

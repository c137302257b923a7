// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Per check
	CheckDuration *prometheus.HistogramVec
	CheckUp       *prometheus.GaugeVec // 1=UP,0=DOWN

	// Per probe category
	ProbeResponses *prometheus.CounterVec
	ProbeDuration  *prometheus.HistogramVec

	// Boot and runtime state
	BootCompletedGauge       prometheus.Gauge
	DependencyReachableGauge prometheus.Gauge
	BootDuration             prometheus.Gauge
	MaintenanceGauge         prometheus.Gauge // 1=on,0=off

	SecretRequests *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "probe_check_duration_seconds", Help: "Health check evaluation duration seconds", Buckets: prometheus.DefBuckets}, []string{"category", "check"})
		CheckUp = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "probe_check_up", Help: "Last verdict of a health check UP=1 DOWN=0"}, []string{"category", "check"})
		ProbeResponses = promauto.NewCounterVec(prometheus.CounterOpts{Name: "probe_responses_total", Help: "Number of aggregated probe responses by status"}, []string{"category", "status"})
		ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "probe_duration_seconds", Help: "Aggregated probe duration seconds", Buckets: prometheus.DefBuckets}, []string{"category"})
		BootCompletedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "probe_boot_completed", Help: "Boot sequence finished=1 running=0"})
		DependencyReachableGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "probe_boot_dependency_reachable", Help: "Dependency reachable during boot=1 otherwise 0"})
		BootDuration = promauto.NewGauge(prometheus.GaugeOpts{Name: "probe_boot_duration_seconds", Help: "Duration of the boot dependency check seconds"})
		MaintenanceGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "probe_maintenance_mode", Help: "Maintenance mode on=1 off=0"})
		SecretRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "probe_secret_requests_total", Help: "Secret endpoint requests by outcome"}, []string{"outcome"})
	})
}

func boolGauge(up bool) float64 {
	if up {
		return 1
	}
	return 0
}

// ObserveCheck records one check evaluation.
func ObserveCheck(category, check string, up bool, d time.Duration) {
	if CheckDuration != nil {
		CheckDuration.WithLabelValues(category, check).Observe(d.Seconds())
	}
	if CheckUp != nil {
		CheckUp.WithLabelValues(category, check).Set(boolGauge(up))
	}
}

// ObserveProbe records one aggregated probe response.
func ObserveProbe(category string, up bool, d time.Duration) {
	status := "DOWN"
	if up {
		status = "UP"
	}
	if ProbeResponses != nil {
		ProbeResponses.WithLabelValues(category, status).Inc()
	}
	if ProbeDuration != nil {
		ProbeDuration.WithLabelValues(category).Observe(d.Seconds())
	}
}

// SetBootState records the published boot snapshot.
func SetBootState(completed, reachable bool, d time.Duration) {
	if BootCompletedGauge != nil {
		BootCompletedGauge.Set(boolGauge(completed))
	}
	if DependencyReachableGauge != nil {
		DependencyReachableGauge.Set(boolGauge(reachable))
	}
	if BootDuration != nil {
		BootDuration.Set(d.Seconds())
	}
}

// SetMaintenance sets the maintenance gauge.
func SetMaintenance(on bool) {
	if MaintenanceGauge != nil {
		MaintenanceGauge.Set(boolGauge(on))
	}
}

// CountSecretRequest counts a secret endpoint request by outcome (ok, not_set, decode_error, unauthorized, rate_limited).
func CountSecretRequest(outcome string) {
	if SecretRequests != nil {
		SecretRequests.WithLabelValues(outcome).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}

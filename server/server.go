// Package server exposes the HTTP API: health probes, status, config, metrics and
// the secret endpoint. It injects correlation IDs into request contexts, opens a
// tracing span per request and applies CORS.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/probe-tender/config"
	"github.com/onnwee/probe-tender/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// ctx bounds the rate limiter's cleanup goroutine.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	authCfg := loadAuthConfig()
	corsCfg := loadCORSConfig()
	limiter := newIPRateLimiter(ctx, loadRateLimiterConfig())

	handlers := NewHandlers(deps)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/health/ready", handlers.HandleReady)
	mux.HandleFunc("/health/started", handlers.HandleStarted)
	mux.HandleFunc("/health/live", handlers.HandleLive)
	mux.HandleFunc("/healthz", handlers.HandleLive)

	mux.HandleFunc("/status", handlers.HandleStatus)
	mux.HandleFunc("/config", handlers.HandleConfig)

	// auth first, then rate limiting
	mux.Handle("/secret", adminAuth(rateLimitMiddleware(http.HandlerFunc(handlers.HandleSecret), limiter), authCfg))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, rec.statusCode)
		// 503 from a probe is an answer, not a server fault
		if rec.statusCode >= 400 && rec.statusCode != http.StatusServiceUnavailable {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", rec.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeTimeoutMargin is the time left to encode a probe answer after the aggregation bound.
const writeTimeoutMargin = 5 * time.Second

// writeTimeout keeps the server from cutting off a probe answer: it is never shorter
// than the probe bound plus a margin.
func writeTimeout(cfg *config.Config) time.Duration {
	const floor = 30 * time.Second
	if cfg == nil || cfg.ProbeTimeout <= 0 {
		return floor
	}
	return max(floor, cfg.ProbeTimeout+writeTimeoutMargin)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, deps Deps, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return Serve(ctx, deps, ln)
}

// Serve is Start on an existing listener.
func Serve(ctx context.Context, deps Deps, ln net.Listener) error {
	srv := &http.Server{
		Handler:           NewMux(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      writeTimeout(deps.Config),
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		// WithoutCancel keeps ctx values but lets shutdown finish
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", ln.Addr().String()), slog.String("component", "http"))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	<-shutdownDone
	return nil
}

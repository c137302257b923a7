package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/probe-tender/health"
	"github.com/onnwee/probe-tender/telemetry"
)

// probeStatusCode maps an aggregated status to the code orchestrators act on.
func probeStatusCode(s health.Status) int {
	if s == health.StatusUp {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func (h *Handlers) serveProbe(w http.ResponseWriter, r *http.Request, categories ...health.Category) {
	if !allowReadOnly(w, r) {
		return
	}
	resp := h.deps.Registry.Run(r.Context(), categories...)
	if resp.Checks == nil {
		resp.Checks = []health.CheckResult{}
	}
	if resp.Status != health.StatusUp {
		telemetry.LoggerWithCorr(r.Context()).Debug("probe DOWN",
			slog.String("path", r.URL.Path), slog.Int("checks", len(resp.Checks)), slog.String("component", "http"))
	}
	writeJSON(w, r, probeStatusCode(resp.Status), resp)
}

// HandleReady serves the readiness probe.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.serveProbe(w, r, health.Readiness)
}

// HandleStarted serves the startup probe.
func (h *Handlers) HandleStarted(w http.ResponseWriter, r *http.Request) {
	h.serveProbe(w, r, health.Startup)
}

// HandleHealth serves readiness and startup checks as one response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.serveProbe(w, r, health.Readiness, health.Startup)
}

// HandleLive serves the liveness probe. With no liveness checks registered it is UP
// for as long as the process answers.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.serveProbe(w, r, health.Liveness)
}

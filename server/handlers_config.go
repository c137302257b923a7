package server

import (
	"net/http"

	"github.com/onnwee/probe-tender/db"
	"github.com/onnwee/probe-tender/system"
)

type statusResponse struct {
	Phase       system.Phase     `json:"phase"`
	Initialized bool             `json:"initialized"`
	Maintenance bool             `json:"maintenance"`
	Boot        *system.Snapshot `json:"boot,omitempty"`
	Pool        *db.Stats        `json:"db_pool,omitempty"`
}

// HandleStatus reports the boot snapshot, phase and maintenance flag.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowReadOnly(w, r) {
		return
	}
	resp := statusResponse{Phase: system.PhaseBooting}
	if st := h.deps.State; st != nil {
		snap := st.Snapshot()
		resp.Phase = st.Phase()
		resp.Initialized = resp.Phase == system.PhaseStarted
		resp.Maintenance = st.IsInMaintenance()
		resp.Boot = &snap
	}
	if h.deps.DB != nil {
		stats := db.PoolStats(h.deps.DB)
		resp.Pool = &stats
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleConfig returns the effective configuration minus secrets.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowReadOnly(w, r) {
		return
	}
	c := h.deps.Config
	out := map[string]any{
		"HTTP_ADDR":                c.HTTPAddr,
		"DEPENDENCY_MODE":          string(c.DependencyMode),
		"DB_DRIVER":                c.DBDriver,
		"DEPENDENCY_TIMEOUT":       c.DependencyTimeout.String(),
		"DEPENDENCY_DELAY":         c.DependencyDelay.String(),
		"STARTUP_DELAY":            c.StartupDelay.String(),
		"PROBE_TIMEOUT":            c.ProbeTimeout.String(),
		"SIMULATE_STARTUP_FAILURE": c.SimulateStartupFailure,
		"CONFIG_FILE":              c.ConfigFile,
		"SECRET_PHRASE_SET":        c.ValidateSecret() == nil,
		"ENCRYPTION_KEY_SET":       c.EncryptionKey != "",
	}
	if h.deps.State != nil {
		out["MAINTENANCE_MODE"] = h.deps.State.IsInMaintenance()
	} else {
		out["MAINTENANCE_MODE"] = c.MaintenanceMode
	}
	writeJSON(w, r, http.StatusOK, out)
}

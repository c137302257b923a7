package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/probe-tender/probe"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "DEPENDENCY_MODE", "DB_DRIVER", "DB_DSN", "DEPENDENCY_TIMEOUT",
		"DEPENDENCY_DELAY", "STARTUP_DELAY", "PROBE_TIMEOUT", "SIMULATE_STARTUP_FAILURE",
		"MAINTENANCE_MODE", "CONFIG_FILE", "SECRET_PHRASE", "ENCRYPTION_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":9080" {
		t.Errorf("HTTPAddr = %q, want :9080", cfg.HTTPAddr)
	}
	if cfg.DependencyMode != probe.ModeSQL {
		t.Errorf("DependencyMode = %q, want sql", cfg.DependencyMode)
	}
	if cfg.DBDriver != "pgx" || cfg.DBDsn == "" {
		t.Errorf("unexpected db defaults: driver=%q dsn=%q", cfg.DBDriver, cfg.DBDsn)
	}
	if cfg.DependencyTimeout != 5*time.Second {
		t.Errorf("DependencyTimeout = %v, want 5s", cfg.DependencyTimeout)
	}
	if cfg.StartupDelay != 0 {
		t.Errorf("StartupDelay = %v, want 0", cfg.StartupDelay)
	}
	if cfg.MaintenanceMode {
		t.Error("MaintenanceMode should default to false")
	}
	if cfg.SecretPhrase != DefaultSecretPhrase {
		t.Errorf("SecretPhrase = %q, want sentinel", cfg.SecretPhrase)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPENDENCY_MODE", "down-after-timeout")
	t.Setenv("DEPENDENCY_TIMEOUT", "250ms")
	t.Setenv("STARTUP_DELAY", "30s")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("SIMULATE_STARTUP_FAILURE", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DependencyMode != probe.ModeDownAfterTimeout {
		t.Errorf("DependencyMode = %q", cfg.DependencyMode)
	}
	if cfg.DependencyTimeout != 250*time.Millisecond {
		t.Errorf("DependencyTimeout = %v", cfg.DependencyTimeout)
	}
	if cfg.StartupDelay != 30*time.Second {
		t.Errorf("StartupDelay = %v", cfg.StartupDelay)
	}
	if !cfg.MaintenanceMode || !cfg.SimulateStartupFailure {
		t.Errorf("expected maintenance and simulated failure enabled: %+v", cfg)
	}
}

func TestLoadReportsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPENDENCY_MODE", "sometimes")
	t.Setenv("DEPENDENCY_TIMEOUT", "soon")
	t.Setenv("MAINTENANCE_MODE", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"dependency mode", "DEPENDENCY_TIMEOUT", "MAINTENANCE_MODE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.DependencyTimeout = 0
	cfg.DBDriver = "mysql"
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "DEPENDENCY_TIMEOUT") || !strings.Contains(err.Error(), "DB_DRIVER") {
		t.Errorf("unexpected validation error: %v", err)
	}

	cfg.DBDriver = "mysql"
	cfg.DependencyTimeout = time.Second
	cfg.DependencyMode = probe.ModeAlwaysUp
	if err := cfg.Validate(); err != nil {
		t.Errorf("driver should not matter outside sql mode: %v", err)
	}
}

func TestValidateDependencyTimeoutBelowProbeTimeout(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.DependencyMode = probe.ModeAlwaysUp

	for _, dep := range []time.Duration{2 * time.Second, 3 * time.Second} {
		cfg.DependencyTimeout = dep
		cfg.ProbeTimeout = 2 * time.Second
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "must be shorter than PROBE_TIMEOUT") {
			t.Errorf("DependencyTimeout=%s ProbeTimeout=2s: got %v", dep, err)
		}
	}

	cfg.DependencyTimeout = time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("1s below 2s should validate: %v", err)
	}
}

func TestValidateSecret(t *testing.T) {
	clearEnv(t)
	cfg, _ := Load()
	if err := cfg.ValidateSecret(); !errors.Is(err, ErrSecretNotSet) {
		t.Errorf("expected ErrSecretNotSet, got %v", err)
	}
	t.Setenv("SECRET_PHRASE", "{xor}LDo8LTor")
	cfg, _ = Load()
	if err := cfg.ValidateSecret(); err != nil {
		t.Errorf("expected valid secret, got %v", err)
	}
}

func TestLoadConfigFileOverridesMaintenance(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "probe.yaml")
	if err := os.WriteFile(path, []byte("maintenance: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAINTENANCE_MODE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.MaintenanceMode {
		t.Error("config file should enable maintenance")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

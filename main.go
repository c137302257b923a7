// Command probe-tender serves readiness and startup probes for an orchestrator.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the dependency probe (SQL ping or one of the simulated behaviors).
//   - Runs the boot-time dependency check on its own goroutine while the HTTP server
//     is already answering, so the startup probe can observe the booting phase.
//   - Watches CONFIG_FILE (if set) and applies its maintenance flag live.
//   - Exposes /health, /health/ready, /health/started, /health/live, /status,
//     /config, /secret and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/probe-tender/config"
	"github.com/onnwee/probe-tender/crypto"
	"github.com/onnwee/probe-tender/db"
	"github.com/onnwee/probe-tender/health"
	"github.com/onnwee/probe-tender/probe"
	"github.com/onnwee/probe-tender/server"
	"github.com/onnwee/probe-tender/system"
	"github.com/onnwee/probe-tender/telemetry"
)

const (
	serviceName    = "probe-tender"
	serviceVersion = "1.0.0"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing(serviceName, serviceVersion)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

// setupLogging configures the default slog logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

// app is everything run wires together.
type app struct {
	cfg         *config.Config
	prober      probe.Prober
	database    *sql.DB
	maintenance *config.Maintenance
	state       *system.State
	registry    *health.Registry
	secrets     crypto.Decoder
}

// newApp builds the object graph without starting anything.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	p, database, err := buildProber(cfg)
	if err != nil {
		return nil, err
	}
	a.prober, a.database = p, database

	a.maintenance = config.NewMaintenance(cfg.MaintenanceMode)
	telemetry.SetMaintenance(cfg.MaintenanceMode)
	a.state = system.New(a.maintenance)

	a.registry = health.NewRegistry(cfg.ProbeTimeout)
	a.registry.Register(health.Readiness, health.NewReadinessCheck(p, cfg.DependencyTimeout, a.state))
	a.registry.Register(health.Startup, health.NewStartupCheck(a.state, p, cfg.DependencyTimeout))
	if cfg.SimulateStartupFailure {
		a.registry.Register(health.Startup, health.NewStartupFailureCheck(true))
	}

	var enc crypto.Encryptor
	if cfg.EncryptionKey != "" {
		aesEnc, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		enc = aesEnc
	}
	a.secrets = crypto.NewPasswordCodec(enc)
	if err := cfg.ValidateSecret(); err != nil {
		slog.Warn("SECRET_PHRASE not set, /secret will report an error", slog.String("component", "secret"))
	}
	return a, nil
}

// buildProber returns the dependency probe for cfg.DependencyMode. For sql it also
// returns the database handle, which the caller closes.
func buildProber(cfg *config.Config) (probe.Prober, *sql.DB, error) {
	switch cfg.DependencyMode {
	case probe.ModeSQL:
		database, err := db.Open(cfg.DBDriver, cfg.DBDsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db: %w", err)
		}
		return probe.SQL{DB: database}, database, nil
	case probe.ModeAlwaysUp:
		return probe.AlwaysUp(), nil, nil
	case probe.ModeAlwaysDown:
		return probe.AlwaysDown(), nil, nil
	case probe.ModeDownAfterTimeout:
		return probe.DownAfter(cfg.DependencyDelay), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown dependency mode %q", cfg.DependencyMode)
	}
}

func (a *app) close() {
	if a.database == nil {
		return
	}
	if err := a.database.Close(); err != nil {
		slog.Error("failed to close database", slog.Any("err", err))
	}
}

// boot waits out the configured startup delay, then runs the one-time dependency check.
func (a *app) boot(ctx context.Context) {
	log := slog.Default().With(slog.String("component", "boot"))
	if d := a.cfg.StartupDelay; d > 0 {
		log.Info("delaying startup", slog.Duration("delay", d))
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			log.Info("startup delay interrupted")
			return
		}
	}
	took := telemetry.TimeFunc(nil, func() {
		_ = a.state.Initialize(ctx, a.prober, a.cfg.DependencyTimeout)
	})
	snap := a.state.Snapshot()
	telemetry.SetBootState(snap.BootCompleted, snap.DatabaseReachable, took)
}

// watchConfig applies maintenance changes from cfg.ConfigFile until ctx is done.
func (a *app) watchConfig(ctx context.Context) error {
	path := a.cfg.ConfigFile
	fw, err := config.NewFileWatcher(path, config.DefaultDebounce, slog.Default())
	if err != nil {
		return err
	}
	return fw.Watch(ctx, func() error {
		changed, err := a.maintenance.Reload(path)
		if err != nil {
			return err
		}
		on := a.maintenance.Get()
		telemetry.SetMaintenance(on)
		if changed {
			slog.Info("maintenance mode changed", slog.Bool("maintenance", on), slog.String("component", "config_watcher"))
		}
		return nil
	})
}

// run serves until ctx is canceled or the HTTP server fails.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.ConfigFile != "" {
		go func() {
			if err := a.watchConfig(ctx); err != nil {
				slog.Error("config watcher exited", slog.Any("err", err))
			}
		}()
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.Start(ctx, server.Deps{
			Registry: a.registry,
			State:    a.state,
			Config:   cfg,
			Secrets:  a.secrets,
			DB:       a.database,
		}, cfg.HTTPAddr)
	}()

	go a.boot(ctx)

	select {
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
		return <-srvErr
	}
}

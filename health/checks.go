package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/probe-tender/probe"
	"github.com/onnwee/probe-tender/system"
)

// Check evaluates one named concern. Implementations must not panic and must return
// a DOWN result rather than an error.
type Check interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// MaintenanceReader exposes the live maintenance flag.
type MaintenanceReader interface {
	IsInMaintenance() bool
}

// BootState is the part of system.State the startup check needs.
type BootState interface {
	BootCompleted() bool
	IsInitialized() bool
	Snapshot() system.Snapshot
}

// Check names, kept stable for dashboards and orchestrator logs.
const (
	ReadinessCheckName      = "DatabaseReadinessCheck"
	StartupCheckName        = "DatabaseStartupCheck"
	StartupFailureCheckName = "StartupFailureCheck"
)

// ReadinessCheck reports whether the dependency answers right now. The maintenance
// flag is exposed in the diagnostics but never changes the verdict.
type ReadinessCheck struct {
	probe       probe.Prober
	timeout     time.Duration
	maintenance MaintenanceReader
}

// NewReadinessCheck builds the readiness check. A nil probe yields DOWN with a
// configuration-missing reason.
func NewReadinessCheck(p probe.Prober, timeout time.Duration, maintenance MaintenanceReader) *ReadinessCheck {
	return &ReadinessCheck{probe: p, timeout: timeout, maintenance: maintenance}
}

// Name implements Check.
func (c *ReadinessCheck) Name() string { return ReadinessCheckName }

// Check implements Check.
func (c *ReadinessCheck) Check(ctx context.Context) CheckResult {
	b := Named(ReadinessCheckName).
		WithData("maintenance", strconv.FormatBool(c.maintenance != nil && c.maintenance.IsInMaintenance()))

	if err := probe.Run(ctx, c.probe, c.timeout); err != nil {
		return b.WithData("database", "unreachable").
			WithData("status", string(StatusDown)).
			withFailure(ReasonDependencyUnreachable, err).
			Down()
	}
	return b.WithData("database", "reachable").
		WithData("status", string(StatusUp)).
		Up()
}

// StartupCheck gates the orchestrator's restart decision during boot: DOWN while the
// boot task runs, DOWN when the dependency was or is unreachable, UP otherwise.
type StartupCheck struct {
	state   BootState
	probe   probe.Prober
	timeout time.Duration
}

// NewStartupCheck builds the startup check.
func NewStartupCheck(state BootState, p probe.Prober, timeout time.Duration) *StartupCheck {
	return &StartupCheck{state: state, probe: p, timeout: timeout}
}

// Name implements Check.
func (c *StartupCheck) Name() string { return StartupCheckName }

// Check implements Check.
func (c *StartupCheck) Check(ctx context.Context) CheckResult {
	b := Named(StartupCheckName)

	if !c.state.BootCompleted() {
		return b.WithData("status", "initializing").
			WithData("database", "checking").
			WithData("phase", string(system.PhaseBooting)).
			WithData("reason", ReasonInitializing).
			WithData("error_kind", string(KindNotYetInitialized)).
			Down()
	}

	var err error
	if !c.state.IsInitialized() {
		err = fmt.Errorf("%w: boot check failed: %s", ErrDependencyUnreachable, c.state.Snapshot().BootError)
	} else {
		err = probe.Run(ctx, c.probe, c.timeout)
	}
	if err != nil {
		return b.WithData("database", "unreachable").
			WithData("status", string(StatusDown)).
			WithData("phase", string(system.PhaseBooting)).
			WithData("action", "startup probe will fail; the orchestrator restarts the container once its failure threshold is reached").
			withFailure(ReasonStartupDependencyUnreachable, err).
			Down()
	}
	return b.WithData("database", "connected").
		WithData("status", string(StatusUp)).
		WithData("phase", string(system.PhaseStarted)).
		Up()
}

// StartupFailureCheck simulates a startup task that never completes, which keeps the
// startup probe failing until the orchestrator gives up on the container.
type StartupFailureCheck struct {
	fail bool
}

// NewStartupFailureCheck builds the check; fail selects the simulated failure.
func NewStartupFailureCheck(fail bool) *StartupFailureCheck {
	return &StartupFailureCheck{fail: fail}
}

// Name implements Check.
func (c *StartupFailureCheck) Name() string { return StartupFailureCheckName }

// Check implements Check.
func (c *StartupFailureCheck) Check(context.Context) CheckResult {
	if c.fail {
		return Named(StartupFailureCheckName).
			WithData("status", "FAILED").
			WithData("reason", "simulated startup failure").
			WithData("action", "set SIMULATE_STARTUP_FAILURE=false to let startup succeed").
			Down()
	}
	return Named(StartupFailureCheckName).
		WithData("status", "SUCCESS").
		WithData("message", "application startup completed successfully").
		Up()
}

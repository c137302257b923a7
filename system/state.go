// Package system holds the process-wide state that health checks read: whether the
// boot sequence has finished, whether the dependency was reachable at boot, and the
// live maintenance flag.
//
// Boot flags are published once as an immutable Snapshot through an atomic pointer,
// so readers on any goroutine see either the pre-boot or the post-boot view, never a
// mix of both.
package system

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/probe-tender/probe"
	"github.com/onnwee/probe-tender/telemetry"
)

// BoolSource supplies a live boolean configuration value.
type BoolSource interface {
	Get() bool
}

// Phase is the startup state reported to the orchestrator.
type Phase string

const (
	// PhaseBooting means the process has not (yet) initialized successfully.
	PhaseBooting Phase = "BOOTING"
	// PhaseStarted means boot completed and the dependency was reachable.
	PhaseStarted Phase = "STARTED"
)

// Snapshot is the published boot state. It is never mutated after publication.
type Snapshot struct {
	BootCompleted     bool          `json:"boot_completed"`
	DatabaseReachable bool          `json:"database_reachable"`
	CompletedAt       time.Time     `json:"completed_at,omitempty"`
	BootDuration      time.Duration `json:"boot_duration_ns,omitempty"`
	BootError         string        `json:"boot_error,omitempty"`
}

// State tracks boot completion and runtime toggles.
type State struct {
	snap        atomic.Pointer[Snapshot]
	maintenance BoolSource

	once    sync.Once
	bootErr error
	done    chan struct{}
}

// New returns a State in the booting phase. A nil maintenance source reads as false.
func New(maintenance BoolSource) *State {
	s := &State{
		maintenance: maintenance,
		done:        make(chan struct{}),
	}
	s.snap.Store(&Snapshot{})
	return s
}

// Initialize runs the boot-time dependency check, bounded by timeout, and publishes
// the result. Only the first call does any work; later calls return its result.
// A timeout or a canceled ctx counts as an unreachable dependency.
func (s *State) Initialize(ctx context.Context, p probe.Prober, timeout time.Duration) error {
	s.once.Do(func() {
		log := slog.Default().With(slog.String("component", "system_init"))
		log.Info("starting initialization", slog.Duration("timeout", timeout))

		ctx, span := telemetry.StartSpan(ctx, "system", "initialize")
		defer span.End()

		start := time.Now()
		err := probe.Run(ctx, p, timeout)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanSuccess(span)
		}
		next := &Snapshot{
			BootCompleted:     true,
			DatabaseReachable: err == nil,
			CompletedAt:       time.Now().UTC(),
			BootDuration:      time.Since(start),
		}
		if err != nil {
			next.BootError = err.Error()
			log.Error("initialization failed - database not reachable", slog.Any("err", err))
		} else {
			log.Info("initialization complete - database reachable", slog.Duration("took", next.BootDuration))
		}

		s.bootErr = err
		s.snap.Store(next)
		close(s.done)
	})
	<-s.done
	return s.bootErr
}

// Snapshot returns the currently published boot state.
func (s *State) Snapshot() Snapshot { return *s.snap.Load() }

// BootCompleted reports whether Initialize has finished, successfully or not.
func (s *State) BootCompleted() bool { return s.snap.Load().BootCompleted }

// IsDatabaseReachable reports whether the boot-time dependency check succeeded.
func (s *State) IsDatabaseReachable() bool { return s.snap.Load().DatabaseReachable }

// IsInitialized is true only when boot completed and the dependency was reachable.
func (s *State) IsInitialized() bool {
	snap := s.snap.Load()
	return snap.BootCompleted && snap.DatabaseReachable
}

// Phase derives the startup phase from the published snapshot.
func (s *State) Phase() Phase {
	if s.IsInitialized() {
		return PhaseStarted
	}
	return PhaseBooting
}

// IsInMaintenance reads the live maintenance flag.
func (s *State) IsInMaintenance() bool {
	if s.maintenance == nil {
		return false
	}
	return s.maintenance.Get()
}

// Done is closed once Initialize has published its result.
func (s *State) Done() <-chan struct{} { return s.done }

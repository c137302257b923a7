package health

import (
	"errors"

	"github.com/onnwee/probe-tender/probe"
)

var (
	// ErrDependencyUnreachable covers failed, timed out and interrupted probes.
	ErrDependencyUnreachable = probe.ErrUnreachable
	// ErrNotYetInitialized means the boot sequence has not finished.
	ErrNotYetInitialized = errors.New("not yet initialized")
	// ErrConfigurationMissing means a required value is absent or still at its sentinel.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Kind is the diagnostic classification stored under the "error_kind" key.
type Kind string

const (
	KindDependencyUnreachable Kind = "dependency_unreachable"
	KindNotYetInitialized     Kind = "not_yet_initialized"
	KindConfigurationMissing  Kind = "configuration_missing"
)

// Reasons reported in the "reason" diagnostic.
const (
	ReasonDependencyUnreachable        = "dependency unreachable"
	ReasonInitializing                 = "initialization in progress"
	ReasonStartupDependencyUnreachable = "dependency unreachable during startup"
	ReasonConfigurationMissing         = "configuration missing: dependency probe"
	ReasonCheckTimedOut                = "check timed out"
	ReasonCheckFailed                  = "check failed"
)

// KindOf classifies err. Anything that is not a configuration or boot problem is
// treated as an unreachable dependency, including interruptions.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrConfigurationMissing), errors.Is(err, probe.ErrNotConfigured):
		return KindConfigurationMissing
	case errors.Is(err, ErrNotYetInitialized):
		return KindNotYetInitialized
	default:
		return KindDependencyUnreachable
	}
}

// failureReason picks the reason string for a failed probe, appending the bound when
// the probe timed out.
func failureReason(base string, err error) string {
	if KindOf(err) == KindConfigurationMissing {
		return ReasonConfigurationMissing
	}
	var te *probe.TimeoutError
	if errors.As(err, &te) {
		return base + ": " + te.Error()
	}
	return base
}

// withFailure records reason, classification and error text on b.
func (b *Builder) withFailure(base string, err error) *Builder {
	return b.WithData("reason", failureReason(base, err)).
		WithData("error_kind", string(KindOf(err))).
		WithData("error", err.Error())
}

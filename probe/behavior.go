package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode selects how the dependency probe behaves.
type Mode string

const (
	// ModeSQL pings the configured database.
	ModeSQL Mode = "sql"
	// ModeAlwaysUp always reports the dependency reachable.
	ModeAlwaysUp Mode = "always-up"
	// ModeAlwaysDown always reports the dependency unreachable.
	ModeAlwaysDown Mode = "always-down"
	// ModeDownAfterTimeout waits, then reports the dependency unreachable.
	ModeDownAfterTimeout Mode = "down-after-timeout"
)

// ParseMode converts a configuration value into a Mode. The empty string means ModeSQL.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSQL, nil
	case ModeSQL, ModeAlwaysUp, ModeAlwaysDown, ModeDownAfterTimeout:
		return m, nil
	default:
		return "", fmt.Errorf("unknown dependency mode %q (want sql, always-up, always-down or down-after-timeout)", s)
	}
}

// AlwaysUp returns a probe that always succeeds.
func AlwaysUp() Prober {
	return Func(func(context.Context) error { return nil })
}

// AlwaysDown returns a probe that always fails.
func AlwaysDown() Prober {
	return Func(func(context.Context) error {
		return fmt.Errorf("%w: simulated failure", ErrUnreachable)
	})
}

// DownAfter returns a probe that fails once delay has elapsed, simulating a connection
// attempt that hangs until the driver gives up. It returns early if ctx ends first.
func DownAfter(delay time.Duration) Prober {
	return Func(func(ctx context.Context) error {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return fmt.Errorf("%w: connection attempt failed after %s", ErrUnreachable, delay)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

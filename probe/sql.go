package probe

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SQL probes a database by pinging it.
type SQL struct {
	DB Pinger
}

// Probe pings the database; a nil DB counts as not configured.
func (s SQL) Probe(ctx context.Context) error {
	if s.DB == nil {
		return ErrNotConfigured
	}
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnreachable, err)
	}
	return nil
}

package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

// CountingProbe records how often it ran and fails while Fail is set.
type CountingProbe struct {
	calls atomic.Int64
	Fail  atomic.Bool
	Err   error
}

// Probe implements probe.Prober.
func (p *CountingProbe) Probe(context.Context) error {
	p.calls.Add(1)
	if p.Fail.Load() {
		return p.Err
	}
	return nil
}

// Calls returns the number of Probe invocations.
func (p *CountingProbe) Calls() int64 { return p.calls.Load() }

// BlockingProbe blocks until its context is done or Release is closed.
type BlockingProbe struct {
	Release chan struct{}
}

// NewBlockingProbe returns a BlockingProbe released when the test ends.
func NewBlockingProbe(t *testing.T) *BlockingProbe {
	t.Helper()
	p := &BlockingProbe{Release: make(chan struct{})}
	t.Cleanup(func() {
		select {
		case <-p.Release:
		default:
			close(p.Release)
		}
	})
	return p
}

// Probe implements probe.Prober.
func (p *BlockingProbe) Probe(ctx context.Context) error {
	select {
	case <-p.Release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SQLiteDB opens an in-memory sqlite database closed at test end.
func SQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

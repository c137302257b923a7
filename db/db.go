// Package db opens the database handle the dependency probe pings.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
	_ "modernc.org/sqlite"             // pure-Go sqlite driver registered as 'sqlite'
)

// Supported driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Pool settings. The probe holds at most a couple of connections; anything more is waste.
const (
	maxOpenConns    = 2
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = time.Minute
)

// Open returns a lazily connecting handle for driver and dsn. No connection is made
// until the first ping, so a database that is down at boot does not fail Open.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want %s or %s)", driver, DriverPostgres, DriverSQLite)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	database.SetMaxOpenConns(maxOpenConns)
	database.SetMaxIdleConns(maxIdleConns)
	database.SetConnMaxLifetime(connMaxLifetime)
	database.SetConnMaxIdleTime(connMaxIdleTime)
	slog.Debug("database handle opened", slog.String("component", "db"), slog.String("driver", driver))
	return database, nil
}

// Stats is the subset of sql.DBStats reported on /status.
type Stats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// PoolStats snapshots pool counters of database.
func PoolStats(database *sql.DB) Stats {
	s := database.Stats()
	return Stats{OpenConnections: s.OpenConnections, InUse: s.InUse, Idle: s.Idle, WaitCount: s.WaitCount}
}

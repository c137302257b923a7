// Package server exposes the HTTP API handlers.
package server

import (
	"database/sql"

	"github.com/onnwee/probe-tender/config"
	"github.com/onnwee/probe-tender/crypto"
	"github.com/onnwee/probe-tender/health"
	"github.com/onnwee/probe-tender/system"
)

// StateReader is the read side of the boot state served on /status.
type StateReader interface {
	Snapshot() system.Snapshot
	Phase() system.Phase
	IsInMaintenance() bool
}

// Deps are the collaborators the HTTP surface reads from. Only Registry is required.
type Deps struct {
	Registry *health.Registry
	State    StateReader
	Config   *config.Config
	Secrets  crypto.Decoder
	// DB, when set, adds pool statistics to /status.
	DB *sql.DB
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	if deps.Registry == nil {
		deps.Registry = health.NewRegistry(0)
	}
	if deps.Config == nil {
		deps.Config = &config.Config{SecretPhrase: config.DefaultSecretPhrase}
	}
	return &Handlers{deps: deps}
}

package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// File is the optional YAML configuration file. Only the maintenance flag is
// read from it; it is re-read whenever the file changes.
//
//	maintenance: true
type File struct {
	Maintenance *bool `yaml:"maintenance"`
}

// LoadFile parses the YAML file at path.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// Maintenance is the live maintenance flag. Reads and writes are atomic; readers may
// observe an update slightly late.
type Maintenance struct {
	v atomic.Bool
}

// NewMaintenance returns a flag holding initial.
func NewMaintenance(initial bool) *Maintenance {
	m := &Maintenance{}
	m.v.Store(initial)
	return m
}

// Get returns the current value.
func (m *Maintenance) Get() bool { return m.v.Load() }

// Set stores on and reports whether the value changed.
func (m *Maintenance) Set(on bool) bool { return m.v.Swap(on) != on }

// Reload re-reads path and applies its maintenance value. A file without the key
// leaves the flag unchanged.
func (m *Maintenance) Reload(path string) (changed bool, err error) {
	f, err := LoadFile(path)
	if err != nil {
		return false, err
	}
	if f.Maintenance == nil {
		return false, nil
	}
	return m.Set(*f.Maintenance), nil
}

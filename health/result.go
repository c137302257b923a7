// Package health evaluates readiness and startup checks and aggregates their results
// into the response an orchestrator consumes.
//
// Each Check produces an immutable CheckResult carrying an UP/DOWN verdict and string
// diagnostics. The Aggregator runs the checks of one category concurrently and reports
// UP only when every check is UP. Failures never escape as errors or panics: they are
// turned into DOWN results whose data explains why.
package health

import (
	"encoding/json"
	"maps"
)

// Status is a binary health verdict.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// CheckResult is the outcome of a single named check. It is immutable once built.
type CheckResult struct {
	name   string
	status Status
	data   map[string]string
}

// Name returns the check name.
func (r CheckResult) Name() string { return r.name }

// Status returns the verdict.
func (r CheckResult) Status() Status { return r.status }

// Data returns a copy of the diagnostics.
func (r CheckResult) Data() map[string]string { return maps.Clone(r.data) }

// Value returns a single diagnostic value.
func (r CheckResult) Value(key string) (string, bool) {
	v, ok := r.data[key]
	return v, ok
}

type checkResultJSON struct {
	Name   string            `json:"name"`
	Status Status            `json:"status"`
	Data   map[string]string `json:"data,omitempty"`
}

// MarshalJSON renders {"name":..,"status":..,"data":{..}}.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(checkResultJSON{Name: r.name, Status: r.status, Data: r.data})
}

// UnmarshalJSON is used by probe clients reading a ProbeResponse.
func (r *CheckResult) UnmarshalJSON(b []byte) error {
	var v checkResultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = CheckResult{name: v.Name, status: v.Status, data: v.Data}
	return nil
}

// Builder assembles a CheckResult.
type Builder struct {
	name string
	data map[string]string
}

// Named starts a result for the named check.
func Named(name string) *Builder {
	return &Builder{name: name, data: map[string]string{}}
}

// WithData adds a diagnostic key/value pair.
func (b *Builder) WithData(key, value string) *Builder {
	b.data[key] = value
	return b
}

// Up builds an UP result.
func (b *Builder) Up() CheckResult { return b.build(StatusUp) }

// Down builds a DOWN result.
func (b *Builder) Down() CheckResult { return b.build(StatusDown) }

func (b *Builder) build(s Status) CheckResult {
	return CheckResult{name: b.name, status: s, data: maps.Clone(b.data)}
}

// ProbeResponse is the aggregated result for one probe invocation.
type ProbeResponse struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Result finds a check result by name.
func (p ProbeResponse) Result(name string) (CheckResult, bool) {
	for _, c := range p.Checks {
		if c.name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Overall is UP iff every result is UP. An empty set is UP.
func Overall(results []CheckResult) Status {
	for _, r := range results {
		if r.status != StatusUp {
			return StatusDown
		}
	}
	return StatusUp
}

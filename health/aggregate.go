package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/probe-tender/telemetry"
)

// Category groups checks served by one probe endpoint.
type Category string

const (
	Readiness Category = "readiness"
	Startup   Category = "startup"
	Liveness  Category = "liveness"
)

// DefaultTimeout bounds an aggregation when none is configured.
const DefaultTimeout = 10 * time.Second

// Aggregator runs the checks of a category and combines their verdicts.
type Aggregator struct {
	timeout time.Duration
}

// NewAggregator returns an Aggregator bounding each invocation by timeout.
// If timeout is 0, DefaultTimeout is used.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{timeout: timeout}
}

// Aggregate runs every check concurrently and returns all results in the order given.
// It never stops at the first DOWN. A check that has not answered when the bound
// expires is reported DOWN with ReasonCheckTimedOut.
func (a *Aggregator) Aggregate(ctx context.Context, category Category, checks []Check) ProbeResponse {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "health", "aggregate "+string(category),
		attribute.String("probe.category", string(category)),
		attribute.Int("probe.checks", len(checks)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			var err error
			results[i], err = runCheck(ctx, category, c)
			return err
		})
	}
	// A panicking check is already DOWN in results; the group error only marks the span.
	panicErr := g.Wait()

	resp := ProbeResponse{Status: Overall(results), Checks: results}
	up := resp.Status == StatusUp
	telemetry.ObserveProbe(string(category), up, time.Since(start))
	span.SetAttributes(attribute.String("probe.status", string(resp.Status)))
	if panicErr != nil {
		telemetry.RecordError(span, panicErr)
	} else if !up {
		code, msg := telemetry.ErrorStatus(string(category) + " probe DOWN")
		span.SetStatus(code, msg)
	}
	return resp
}

// runCheck evaluates c, converting a panic or an expired ctx into a DOWN result.
// The error is non-nil only when the check panicked.
func runCheck(ctx context.Context, category Category, c Check) (CheckResult, error) {
	name := c.Name()
	start := time.Now()

	type outcome struct {
		res CheckResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.LoggerWithCorr(ctx).Error("health check panicked",
					slog.String("check", name), slog.Any("panic", r), slog.String("component", "health"))
				ch <- outcome{
					res: Named(name).
						WithData("reason", ReasonCheckFailed).
						WithData("error", fmt.Sprint(r)).
						Down(),
					err: fmt.Errorf("health check %s panicked: %v", name, r),
				}
			}
		}()
		ch <- outcome{res: c.Check(ctx)}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		select {
		case out = <-ch:
		default:
			out.res = Named(name).
				WithData("reason", ReasonCheckTimedOut).
				WithData("error_kind", string(KindDependencyUnreachable)).
				WithData("error", ctx.Err().Error()).
				Down()
		}
	}
	res := out.res

	d := time.Since(start)
	telemetry.ObserveCheck(string(category), name, res.Status() == StatusUp, d)
	if res.Status() != StatusUp {
		reason, _ := res.Value("reason")
		telemetry.LoggerWithCorr(ctx).Debug("health check down",
			slog.String("category", string(category)),
			slog.String("check", name),
			slog.String("reason", reason),
			slog.Duration("took", d),
			slog.String("component", "health"))
	}
	return res, out.err
}

// Registry holds the checks of each category. Checks are registered during boot and
// read by every probe request.
type Registry struct {
	mu     sync.RWMutex
	checks map[Category][]Check
	agg    *Aggregator
}

// NewRegistry returns an empty Registry whose aggregations are bounded by timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		checks: make(map[Category][]Check),
		agg:    NewAggregator(timeout),
	}
}

// Register appends c to category.
func (r *Registry) Register(category Category, c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[category] = append(r.checks[category], c)
}

// Checks returns a copy of the checks registered for category, in registration order.
func (r *Registry) Checks(category Category) []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Check, len(r.checks[category]))
	copy(out, r.checks[category])
	return out
}

// Run aggregates the checks of the given categories as one response. A category
// with no checks contributes nothing, so an empty liveness category is UP.
func (r *Registry) Run(ctx context.Context, categories ...Category) ProbeResponse {
	var checks []Check
	for _, c := range categories {
		checks = append(checks, r.Checks(c)...)
	}
	label := Category("all")
	if len(categories) == 1 {
		label = categories[0]
	}
	return r.agg.Aggregate(ctx, label, checks)
}

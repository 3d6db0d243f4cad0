// Package pipeline executes an ordered list of text transforms over a shared
// immutable context and aggregates their findings into a verdict.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"claimgate/internal/pipeline/metrics"
)

// Severity grades a detected issue.
type Severity string

const (
	SeverityOK     Severity = "ok"
	SeverityWarn   Severity = "warn"
	SeverityDanger Severity = "danger"
)

// Flag is a single detected issue. Flags are value objects; they never own
// mutable state.
type Flag struct {
	Kind        Severity `json:"kind"`
	Label       string   `json:"label"`
	Explanation string   `json:"explanation"`
	Source      string   `json:"source,omitempty"`
}

// Context carries the per-run inputs shared by every transform. It is built
// once per pipeline run and never mutated afterwards.
type Context struct {
	Locale        string
	Tenant        string
	CorrelationID string
}

// Result is the output contract every transform returns. Text is the
// (possibly rewritten) input; Modified is true only when Text differs from
// the input. Deduction feeds the trust score; Degraded marks a local-only
// fallback after a failed enrichment call.
type Result struct {
	Transform string         `json:"transform"`
	Text      string         `json:"text"`
	Modified  bool           `json:"modified"`
	Flags     []Flag         `json:"flags"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Deduction int            `json:"deduction,omitempty"`
	Degraded  bool           `json:"degraded,omitempty"`
}

// Transform is a pure, independently testable unit. Implementations catch
// their own internal failures and report them via ErrorResult; a returned
// error is fatal to the whole route.
type Transform interface {
	Name() string
	Apply(ctx context.Context, input string, tc *Context) (Result, error)
}

// ErrorResult converts a transform-internal failure into the unmodified,
// zero-flag result the failure policy requires.
func ErrorResult(name, input string, err error) Result {
	return Result{
		Transform: name,
		Text:      input,
		Metadata:  map[string]any{"error": err.Error()},
	}
}

// LatencyObserver receives per-transform wall-clock measurements. The budget
// recorder implements this to feed the release gate.
type LatencyObserver interface {
	Observe(transform string, ms float64)
}

// Executor runs a route's transforms in declared order. Transforms are
// registered once at startup; concurrent Run calls share the registry
// read-only.
type Executor struct {
	transforms map[string]Transform
	logger     *slog.Logger
	metrics    *metrics.Metrics
	observer   LatencyObserver
	tracer     trace.Tracer
}

// NewExecutor builds an executor over the given transforms. observer may be
// nil when no budget measurements are collected.
func NewExecutor(transforms []Transform, logger *slog.Logger, m *metrics.Metrics, observer LatencyObserver) *Executor {
	registry := make(map[string]Transform, len(transforms))
	for _, t := range transforms {
		registry[t.Name()] = t
	}
	return &Executor{
		transforms: registry,
		logger:     logger,
		metrics:    m,
		observer:   observer,
		tracer:     otel.Tracer("claimgate/pipeline"),
	}
}

// Has reports whether a transform name is registered.
func (e *Executor) Has(name string) bool {
	_, ok := e.transforms[name]
	return ok
}

// Run executes the named transforms in order, each receiving the original
// input. Transforms do not chain each other's rewritten text; order affects
// audit-trail and flag ordering only. A transform returning an error aborts
// the run before the remaining transforms execute.
func (e *Executor) Run(ctx context.Context, names []string, input string, tc *Context) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	results := make([]Result, 0, len(names))
	for _, name := range names {
		transform, ok := e.transforms[name]
		if !ok {
			return results, fmt.Errorf("unknown transform %q", name)
		}

		start := time.Now()
		result, err := transform.Apply(ctx, input, tc)
		elapsed := time.Since(start)

		e.metrics.ObserveTransform(name, elapsed.Seconds())
		if e.observer != nil {
			e.observer.Observe(name, float64(elapsed.Microseconds())/1000)
		}

		if err != nil {
			e.metrics.IncFatal(name)
			e.logger.ErrorContext(ctx, "transform failed fatally",
				"transform", name,
				"correlation_id", tc.CorrelationID,
				"error", err,
			)
			return results, fmt.Errorf("transform %s: %w", name, err)
		}

		result.Transform = name
		if result.Degraded {
			e.metrics.IncDegraded(name)
		}
		results = append(results, result)
	}

	e.metrics.IncRuns()
	return results, nil
}

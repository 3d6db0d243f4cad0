// Package budget implements the latency release gate: per-transform
// measurements are collected into sliding windows, summarized at p95, and
// compared against each route's declared budget.
package budget

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"claimgate/internal/policy"
)

// DefaultWindowSize bounds how many samples each transform retains.
const DefaultWindowSize = 1024

// FallbackEstimateMS stands in for transforms with no recorded samples, so
// a cold gate run still produces a conservative verdict.
const FallbackEstimateMS = 5.0

// Recorder accumulates per-transform latency samples in fixed-size sliding
// windows. It implements the pipeline's LatencyObserver.
type Recorder struct {
	mu      sync.Mutex
	size    int
	samples map[string][]float64
}

func NewRecorder(windowSize int) *Recorder {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Recorder{size: windowSize, samples: make(map[string][]float64)}
}

// Observe appends a millisecond sample, evicting the oldest when the window
// is full.
func (r *Recorder) Observe(transform string, ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window := r.samples[transform]
	if len(window) >= r.size {
		window = window[1:]
	}
	r.samples[transform] = append(window, ms)
}

// P95 returns the 95th percentile of the transform's window. ok is false
// when no samples exist.
func (r *Recorder) P95(transform string) (float64, bool) {
	r.mu.Lock()
	window := r.samples[transform]
	sorted := make([]float64, len(window))
	copy(sorted, window)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return 0, false
	}
	sort.Float64s(sorted)
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx], true
}

// Snapshot returns the current p95 per transform.
func (r *Recorder) Snapshot() map[string]float64 {
	r.mu.Lock()
	names := make([]string, 0, len(r.samples))
	for name := range r.samples {
		names = append(names, name)
	}
	r.mu.Unlock()

	snapshot := make(map[string]float64, len(names))
	for _, name := range names {
		if p95, ok := r.P95(name); ok {
			snapshot[name] = p95
		}
	}
	return snapshot
}

// RouteReport compares one route's projected latency with its budget.
type RouteReport struct {
	Profile     string  `json:"profile"`
	Route       string  `json:"route"`
	BudgetMS    int64   `json:"budgetMs"`
	ProjectedMS float64 `json:"projectedMs"`
	Estimated   bool    `json:"estimated"`
	OverBudget  bool    `json:"overBudget"`
}

// Report is the outcome of one gate run across every route in the policy.
type Report struct {
	Routes []RouteReport `json:"routes"`
}

// Pass reports whether every route fits its budget.
func (r Report) Pass() bool {
	for _, route := range r.Routes {
		if route.OverBudget {
			return false
		}
	}
	return true
}

// Failures returns the over-budget routes.
func (r Report) Failures() []RouteReport {
	var failures []RouteReport
	for _, route := range r.Routes {
		if route.OverBudget {
			failures = append(failures, route)
		}
	}
	return failures
}

// Check projects each route's latency as the sum of its transforms' p95
// measurements and flags routes that exceed their declared budget.
// Transforms with no measurement fall back to a fixed estimate and mark the
// route report as estimated.
func Check(doc *policy.Document, measurements map[string]float64) Report {
	var report Report
	for _, profileName := range sortedKeys(doc.Profiles) {
		profile := doc.Profiles[profileName]
		for _, routeName := range sortedKeys(profile.Routes) {
			route := profile.Routes[routeName]

			projected := 0.0
			estimated := false
			for _, transform := range route.Transforms {
				if p95, ok := measurements[transform]; ok {
					projected += p95
					continue
				}
				projected += FallbackEstimateMS
				estimated = true
			}

			report.Routes = append(report.Routes, RouteReport{
				Profile:     profileName,
				Route:       routeName,
				BudgetMS:    route.LatencyBudgetMS,
				ProjectedMS: projected,
				Estimated:   estimated,
				OverBudget:  projected > float64(route.LatencyBudgetMS),
			})
		}
	}
	return report
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summarize renders one line per route for CLI output.
func (r RouteReport) Summarize() string {
	status := "ok"
	if r.OverBudget {
		status = "OVER BUDGET"
	}
	suffix := ""
	if r.Estimated {
		suffix = " (partially estimated)"
	}
	return fmt.Sprintf("%s/%s: projected %.1fms of %dms budget, %s%s",
		r.Profile, r.Route, r.ProjectedMS, r.BudgetMS, status, suffix)
}

package budget

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimgate/internal/policy"
)

func TestRecorderP95(t *testing.T) {
	r := NewRecorder(0)

	_, ok := r.P95("allergen_detector")
	assert.False(t, ok)

	// 100 samples 1..100ms; p95 is the 95th value.
	for i := 1; i <= 100; i++ {
		r.Observe("allergen_detector", float64(i))
	}
	p95, ok := r.P95("allergen_detector")
	require.True(t, ok)
	assert.InDelta(t, 95.0, p95, 0.001)
}

func TestRecorderSingleSample(t *testing.T) {
	r := NewRecorder(0)
	r.Observe("weasel_detector", 12.5)

	p95, ok := r.P95("weasel_detector")
	require.True(t, ok)
	assert.InDelta(t, 12.5, p95, 0.001)
}

func TestRecorderWindowEviction(t *testing.T) {
	r := NewRecorder(10)

	// Slow samples first, then a full window of fast ones. The slow samples
	// must age out.
	for i := 0; i < 10; i++ {
		r.Observe("pii_redactor", 500)
	}
	for i := 0; i < 10; i++ {
		r.Observe("pii_redactor", 1)
	}

	p95, ok := r.P95("pii_redactor")
	require.True(t, ok)
	assert.InDelta(t, 1.0, p95, 0.001)
}

func TestSnapshot(t *testing.T) {
	r := NewRecorder(0)
	r.Observe("allergen_detector", 3)
	r.Observe("weasel_detector", 7)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	assert.InDelta(t, 3.0, snapshot["allergen_detector"], 0.001)
	assert.InDelta(t, 7.0, snapshot["weasel_detector"], 0.001)
}

func gateDocument(budgetMS int64) *policy.Document {
	return &policy.Document{
		Version: "1",
		Profiles: map[string]policy.Profile{
			"us-default": {
				Locale: "en-US",
				Routes: map[string]policy.Route{
					"menu-item": {
						Transforms:      []string{"allergen_detector", "weasel_detector"},
						LatencyBudgetMS: budgetMS,
					},
				},
			},
		},
	}
}

func TestCheck(t *testing.T) {
	measurements := map[string]float64{
		"allergen_detector": 40,
		"weasel_detector":   55,
	}

	t.Run("within budget", func(t *testing.T) {
		report := Check(gateDocument(100), measurements)
		require.Len(t, report.Routes, 1)
		assert.True(t, report.Pass())
		assert.False(t, report.Routes[0].OverBudget)
		assert.False(t, report.Routes[0].Estimated)
		assert.InDelta(t, 95.0, report.Routes[0].ProjectedMS, 0.001)
	})

	t.Run("exactly at budget passes", func(t *testing.T) {
		report := Check(gateDocument(95), measurements)
		assert.True(t, report.Pass())
	})

	t.Run("over budget fails", func(t *testing.T) {
		report := Check(gateDocument(90), measurements)
		assert.False(t, report.Pass())
		require.Len(t, report.Failures(), 1)
		assert.Equal(t, "menu-item", report.Failures()[0].Route)
	})

	t.Run("missing measurement falls back to estimate", func(t *testing.T) {
		report := Check(gateDocument(100), map[string]float64{"allergen_detector": 40})
		require.Len(t, report.Routes, 1)
		assert.True(t, report.Routes[0].Estimated)
		assert.InDelta(t, 40.0+FallbackEstimateMS, report.Routes[0].ProjectedMS, 0.001)
	})
}

func TestCheckOrdersRoutesDeterministically(t *testing.T) {
	doc := &policy.Document{
		Version: "1",
		Profiles: map[string]policy.Profile{
			"us-default": {
				Locale: "en-US",
				Routes: map[string]policy.Route{
					"menu-item":    {Transforms: []string{"allergen_detector"}, LatencyBudgetMS: 50},
					"product-page": {Transforms: []string{"allergen_detector"}, LatencyBudgetMS: 50},
				},
			},
			"eu-default": {
				Locale: "de-DE",
				Routes: map[string]policy.Route{
					"menu-item": {Transforms: []string{"allergen_detector"}, LatencyBudgetMS: 50},
				},
			},
		},
	}

	report := Check(doc, nil)
	require.Len(t, report.Routes, 3)
	got := make([]string, 0, 3)
	for _, route := range report.Routes {
		got = append(got, fmt.Sprintf("%s/%s", route.Profile, route.Route))
	}
	assert.Equal(t, []string{"eu-default/menu-item", "us-default/menu-item", "us-default/product-page"}, got)
}

func TestSummarize(t *testing.T) {
	over := RouteReport{Profile: "us-default", Route: "menu-item", BudgetMS: 50, ProjectedMS: 72.5, OverBudget: true}
	assert.Contains(t, over.Summarize(), "OVER BUDGET")

	ok := RouteReport{Profile: "us-default", Route: "menu-item", BudgetMS: 50, ProjectedMS: 12.0, Estimated: true}
	assert.Contains(t, ok.Summarize(), "partially estimated")
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimgate/internal/pipeline/metrics"
)

var testMetrics = metrics.New()

type fakeTransform struct {
	name   string
	result Result
	err    error
	calls  int
}

func (f *fakeTransform) Name() string { return f.name }

func (f *fakeTransform) Apply(_ context.Context, input string, _ *Context) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	r := f.result
	if r.Text == "" {
		r.Text = input
	}
	return r, f.err
}

type recordingObserver struct {
	mu      sync.Mutex
	samples map[string]int
}

func (o *recordingObserver) Observe(name string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.samples == nil {
		o.samples = map[string]int{}
	}
	o.samples[name]++
}

func newTestExecutor(observer LatencyObserver, transforms ...Transform) *Executor {
	return NewExecutor(transforms, slog.Default(), testMetrics, observer)
}

func TestExecutor_RunsInDeclaredOrder(t *testing.T) {
	a := &fakeTransform{name: "a", result: Result{Flags: []Flag{{Kind: SeverityWarn, Label: "from-a"}}}}
	b := &fakeTransform{name: "b", result: Result{Flags: []Flag{{Kind: SeverityDanger, Label: "from-b"}}}}
	e := newTestExecutor(nil, a, b)

	results, err := e.Run(context.Background(), []string{"b", "a"}, "text", &Context{CorrelationID: "c1"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Transform)
	assert.Equal(t, "a", results[1].Transform)
}

func TestExecutor_EachTransformSeesOriginalInput(t *testing.T) {
	rewriter := &fakeTransform{name: "rewriter", result: Result{Text: "rewritten", Modified: true}}
	var sawInput string
	probe := &probeTransform{name: "probe", onApply: func(input string) { sawInput = input }}
	e := newTestExecutor(nil, rewriter, probe)

	_, err := e.Run(context.Background(), []string{"rewriter", "probe"}, "original", &Context{})
	require.NoError(t, err)
	assert.Equal(t, "original", sawInput)
}

type probeTransform struct {
	name    string
	onApply func(input string)
}

func (p *probeTransform) Name() string { return p.name }

func (p *probeTransform) Apply(_ context.Context, input string, _ *Context) (Result, error) {
	p.onApply(input)
	return Result{Text: input}, nil
}

func TestExecutor_FatalErrorAbortsRemainingTransforms(t *testing.T) {
	ok := &fakeTransform{name: "ok"}
	boom := &fakeTransform{name: "boom", err: errors.New("unrecoverable")}
	after := &fakeTransform{name: "after"}
	e := newTestExecutor(nil, ok, boom, after)

	results, err := e.Run(context.Background(), []string{"ok", "boom", "after"}, "text", &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, results, 1)
	assert.Equal(t, 0, after.calls)
}

func TestExecutor_UnknownTransformIsFatal(t *testing.T) {
	e := newTestExecutor(nil, &fakeTransform{name: "known"})
	_, err := e.Run(context.Background(), []string{"missing"}, "text", &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestExecutor_FeedsLatencyObserver(t *testing.T) {
	observer := &recordingObserver{}
	e := newTestExecutor(observer, &fakeTransform{name: "a"}, &fakeTransform{name: "b"})

	_, err := e.Run(context.Background(), []string{"a", "b", "a"}, "text", &Context{})
	require.NoError(t, err)
	assert.Equal(t, 2, observer.samples["a"])
	assert.Equal(t, 1, observer.samples["b"])
}

func TestAggregate(t *testing.T) {
	tc := &Context{CorrelationID: "corr-9"}

	t.Run("concatenates flags in transform order without dedup", func(t *testing.T) {
		results := []Result{
			{Transform: "allergen", Flags: []Flag{{Kind: SeverityDanger, Label: "allergen:peanuts"}}},
			{Transform: "weasel", Flags: []Flag{{Kind: SeverityWarn, Label: "weasel_language"}}},
			{Transform: "again", Flags: []Flag{{Kind: SeverityDanger, Label: "allergen:peanuts"}}},
		}
		verdict := Aggregate(results, tc)
		require.Len(t, verdict.Flags, 3)
		assert.Equal(t, "allergen:peanuts", verdict.Flags[0].Label)
		assert.Equal(t, "weasel_language", verdict.Flags[1].Label)
		assert.Equal(t, "corr-9", verdict.CorrelationID)
	})

	t.Run("subtracts deductions from ceiling with floor at zero", func(t *testing.T) {
		verdict := Aggregate([]Result{{Deduction: 20}, {Deduction: 15}}, tc)
		assert.Equal(t, 65, verdict.Score)

		floored := Aggregate([]Result{{Deduction: 60}, {Deduction: 60}}, tc)
		assert.Equal(t, 0, floored.Score)
	})

	t.Run("tracks degraded transforms", func(t *testing.T) {
		verdict := Aggregate([]Result{
			{Transform: "recall_checker", Degraded: true},
			{Transform: "weasel_detector"},
		}, tc)
		assert.True(t, verdict.DegradedMode)
		assert.Equal(t, []string{"recall_checker"}, verdict.DegradedServices)
	})

	t.Run("empty run keeps full score", func(t *testing.T) {
		verdict := Aggregate(nil, tc)
		assert.Equal(t, ScoreCeiling, verdict.Score)
		assert.Empty(t, verdict.Flags)
		assert.False(t, verdict.DegradedMode)
	})
}

package transforms

import (
	"context"

	"claimgate/internal/pipeline"
)

// RecallStatus is the outcome of a recall-database lookup.
type RecallStatus struct {
	Recalled bool   `json:"recalled"`
	Reason   string `json:"reason,omitempty"`
	Date     string `json:"date,omitempty"`
}

// RecallLookup is the capability behind the recall checker. The stub always
// reports clear; the live variant in internal/enrich calls the recall
// collaborator through the SSRF gateway. The pipeline depends only on this
// interface.
type RecallLookup interface {
	Check(ctx context.Context, product string) (RecallStatus, error)
}

// StubRecallLookup reports every product as not recalled.
type StubRecallLookup struct{}

func (StubRecallLookup) Check(context.Context, string) (RecallStatus, error) {
	return RecallStatus{}, nil
}

// recallDeduction is the trust-score cost of a confirmed recall.
const recallDeduction = 40

// RecallChecker surfaces recall-database matches as danger flags. A failed
// or timed-out lookup degrades to the local "not recalled" fallback rather
// than failing the route.
type RecallChecker struct {
	lookup RecallLookup
}

func NewRecallChecker(lookup RecallLookup) *RecallChecker {
	if lookup == nil {
		lookup = StubRecallLookup{}
	}
	return &RecallChecker{lookup: lookup}
}

func (c *RecallChecker) Name() string { return "recall_checker" }

func (c *RecallChecker) Apply(ctx context.Context, input string, _ *pipeline.Context) (pipeline.Result, error) {
	status, err := c.lookup.Check(ctx, input)
	if err != nil {
		return pipeline.Result{
			Text:     input,
			Degraded: true,
			Metadata: map[string]any{
				"error":    err.Error(),
				"recalled": false,
			},
		}, nil
	}

	result := pipeline.Result{
		Text: input,
		Metadata: map[string]any{
			"recalled": status.Recalled,
		},
	}
	if status.Recalled {
		result.Deduction = recallDeduction
		if status.Reason != "" {
			result.Metadata["reason"] = status.Reason
		}
		if status.Date != "" {
			result.Metadata["date"] = status.Date
		}
		result.Flags = append(result.Flags, pipeline.Flag{
			Kind:        pipeline.SeverityDanger,
			Label:       "recalled_product",
			Explanation: "product matches an active recall: " + status.Reason,
			Source:      c.Name(),
		})
	}
	return result, nil
}

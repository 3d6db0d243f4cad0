package transforms

import (
	"context"
	"strings"

	"claimgate/internal/pipeline"
	"claimgate/internal/rulepack"
)

// RegulatoryDisclaimer is the fixed disclaimer appended to text carrying a
// banned health claim. The wording is fixed so downstream fixtures can match
// it byte-for-byte.
const RegulatoryDisclaimer = "This statement has not been evaluated by a food safety authority. This product is not intended to diagnose, treat, cure, or prevent any disease."

// DisclaimerRewriter appends the regulatory disclaimer when the text carries
// any banned claim term.
type DisclaimerRewriter struct {
	claims []string
}

func NewDisclaimerRewriter(set *rulepack.Set) *DisclaimerRewriter {
	return &DisclaimerRewriter{claims: set.BannedClaims}
}

func (r *DisclaimerRewriter) Name() string { return "disclaimer_rewriter" }

func (r *DisclaimerRewriter) Apply(_ context.Context, input string, _ *pipeline.Context) (pipeline.Result, error) {
	lower := strings.ToLower(input)

	var matched []string
	for _, claim := range r.claims {
		if claim != "" && strings.Contains(lower, strings.ToLower(claim)) {
			matched = append(matched, claim)
		}
	}

	if len(matched) == 0 {
		return pipeline.Result{
			Text:     input,
			Metadata: map[string]any{"appended": false},
		}, nil
	}

	text := strings.TrimRight(input, " ")
	if text != "" {
		text += " "
	}
	text += RegulatoryDisclaimer

	return pipeline.Result{
		Text:     text,
		Modified: true,
		Flags: []pipeline.Flag{{
			Kind:        pipeline.SeverityWarn,
			Label:       "banned_claim",
			Explanation: "unsubstantiated claim language: " + strings.Join(matched, ", "),
			Source:      r.Name(),
		}},
		Metadata: map[string]any{
			"appended": true,
			"claims":   matched,
		},
	}, nil
}

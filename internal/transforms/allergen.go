// Package transforms contains the individual compliance transforms run by
// the pipeline executor. Every transform is stateless; detection terms come
// from the verified rule packs loaded at startup.
package transforms

import (
	"context"
	"fmt"
	"strings"

	"claimgate/internal/pipeline"
	"claimgate/internal/rulepack"
)

// AllergenDetector matches ingredient text against the allergen term list
// and cross-contamination phrasing from the rule pack.
type AllergenDetector struct {
	allergens []rulepack.Allergen
	phrases   []string
}

func NewAllergenDetector(set *rulepack.Set) *AllergenDetector {
	return &AllergenDetector{
		allergens: set.Allergens,
		phrases:   set.ContaminationPhrases,
	}
}

func (d *AllergenDetector) Name() string { return "allergen_detector" }

func (d *AllergenDetector) Apply(_ context.Context, input string, _ *pipeline.Context) (pipeline.Result, error) {
	lower := strings.ToLower(input)

	// Dedup by canonical name, preserving first-detection order.
	seen := make(map[string]bool)
	var detected []string
	for _, allergen := range d.allergens {
		if seen[allergen.Canonical] {
			continue
		}
		for _, term := range allergen.Terms {
			if term != "" && strings.Contains(lower, strings.ToLower(term)) {
				seen[allergen.Canonical] = true
				detected = append(detected, allergen.Canonical)
				break
			}
		}
	}

	var contamination bool
	for _, phrase := range d.phrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			contamination = true
			break
		}
	}

	result := pipeline.Result{
		Text: input,
		Metadata: map[string]any{
			"allergens":          detected,
			"crossContamination": contamination,
		},
	}
	for _, name := range detected {
		result.Flags = append(result.Flags, pipeline.Flag{
			Kind:        pipeline.SeverityDanger,
			Label:       "allergen:" + name,
			Explanation: fmt.Sprintf("contains %s", name),
			Source:      d.Name(),
		})
	}
	if contamination {
		result.Flags = append(result.Flags, pipeline.Flag{
			Kind:        pipeline.SeverityWarn,
			Label:       "cross_contamination",
			Explanation: "text mentions possible cross-contamination during preparation",
			Source:      d.Name(),
		})
	}
	return result, nil
}

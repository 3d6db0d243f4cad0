package transforms

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"claimgate/internal/pipeline"
	"claimgate/internal/rulepack"
)

// WeaselDetector measures vague marketing language density and converts it
// into a tiered trust-score deduction. Each token counts at most once: a
// phrase match claims its span, and single-word entries inside a claimed
// span do not fire again.
type WeaselDetector struct {
	words   map[string]bool
	phrases [][]string
}

func NewWeaselDetector(set *rulepack.Set) *WeaselDetector {
	d := &WeaselDetector{words: make(map[string]bool)}
	for _, entry := range set.WeaselWords {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if words := strings.Fields(entry); len(words) > 1 {
			d.phrases = append(d.phrases, words)
		} else {
			d.words[entry] = true
		}
	}
	// Longer phrases match first so "all natural ingredients" wins over
	// "all natural".
	sort.SliceStable(d.phrases, func(i, j int) bool {
		return len(d.phrases[i]) > len(d.phrases[j])
	})
	return d
}

func (d *WeaselDetector) Name() string { return "weasel_detector" }

const tokenPunctuation = `.,;:!?"'()[]{}*`

func (d *WeaselDetector) Apply(_ context.Context, input string, _ *pipeline.Context) (pipeline.Result, error) {
	tokens := strings.Fields(strings.ToLower(input))
	for i, token := range tokens {
		tokens[i] = strings.Trim(token, tokenPunctuation)
	}

	total := len(tokens)
	result := pipeline.Result{Text: input}
	if total == 0 {
		result.Metadata = map[string]any{"density": 0.0, "matches": []string{}}
		return result, nil
	}

	var matches []string
	claimed := make([]bool, total)
	for _, phrase := range d.phrases {
		for i := 0; i+len(phrase) <= total; i++ {
			hit := true
			for j, word := range phrase {
				if claimed[i+j] || tokens[i+j] != word {
					hit = false
					break
				}
			}
			if !hit {
				continue
			}
			matches = append(matches, strings.Join(phrase, " "))
			for j := range phrase {
				claimed[i+j] = true
			}
			i += len(phrase) - 1
		}
	}
	for i, token := range tokens {
		if !claimed[i] && d.words[token] {
			matches = append(matches, token)
		}
	}

	density := float64(len(matches)) / float64(total)
	result.Deduction = weaselDeduction(density)
	result.Metadata = map[string]any{
		"density":    density,
		"matches":    matches,
		"totalWords": total,
	}

	if density >= 0.05 {
		kind := pipeline.SeverityWarn
		if density > 0.20 {
			kind = pipeline.SeverityDanger
		}
		result.Flags = append(result.Flags, pipeline.Flag{
			Kind:        kind,
			Label:       "weasel_language",
			Explanation: fmt.Sprintf("%.0f%% of the text is vague marketing language", density*100),
			Source:      d.Name(),
		})
	}
	return result, nil
}

// weaselDeduction maps density to the tiered trust-score deduction. The 0.20
// boundary belongs to the middle tier: only a strictly greater density earns
// the top deduction.
func weaselDeduction(density float64) int {
	switch {
	case density > 0.20:
		return 20
	case density >= 0.10:
		return 15
	case density >= 0.05:
		return 10
	default:
		return 0
	}
}

package transforms

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"claimgate/internal/pipeline"
)

// Unit conversion factors.
const (
	kcalToKJ = 4.184
	ozToGram = 28.3495
)

// Nutrient is one normalized nutrition value with its unit.
type Nutrient struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// NutritionInput is the JSON shape the nutrition transform accepts. Values
// in Nutrients may be numbers or mixed strings such as "250kcal" or "1.5 oz".
type NutritionInput struct {
	// Basis is "per_serving" (default) or "per_100g" for data that is
	// already normalized to the reference amount.
	Basis        string         `json:"basis,omitempty"`
	ServingSizeG any            `json:"servingSizeG,omitempty"`
	Nutrients    map[string]any `json:"nutrients"`
}

var amountRe = regexp.MustCompile(`^\s*(-?[0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// parseAmount extracts a numeric value and optional unit out of a mixed
// string/number input.
func parseAmount(v any) (float64, string, bool) {
	switch val := v.(type) {
	case float64:
		return val, "", true
	case int:
		return float64(val), "", true
	case json.Number:
		f, err := val.Float64()
		return f, "", err == nil
	case string:
		m := amountRe.FindStringSubmatch(val)
		if m == nil {
			return 0, "", false
		}
		var f float64
		if err := json.Unmarshal([]byte(m[1]), &f); err != nil {
			return 0, "", false
		}
		return f, strings.ToLower(m[2]), true
	default:
		return 0, "", false
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeNutrition converts per-serving values to per-100g and applies
// locale unit conversion: en-US keeps kcal/oz, every other locale converts
// to kJ/g. Unparsable fields are omitted, never defaulted to zero. The
// function is idempotent for already-normalized input.
func NormalizeNutrition(in NutritionInput, locale string) map[string]Nutrient {
	out := make(map[string]Nutrient, len(in.Nutrients))

	var servingSize float64
	if in.Basis != "per_100g" {
		size, _, ok := parseAmount(in.ServingSizeG)
		if ok && size > 0 {
			servingSize = size
		}
	}

	imperial := locale == "en-US"
	for name, raw := range in.Nutrients {
		value, unit, ok := parseAmount(raw)
		if !ok {
			continue
		}
		if servingSize > 0 {
			value = value / servingSize * 100
		}

		switch unit {
		case "kcal":
			if !imperial {
				value *= kcalToKJ
				unit = "kj"
			}
		case "kj":
			if imperial {
				value /= kcalToKJ
				unit = "kcal"
			}
		case "g":
			if imperial {
				value /= ozToGram
				unit = "oz"
			}
		case "oz":
			if !imperial {
				value *= ozToGram
				unit = "g"
			}
		}

		out[name] = Nutrient{Value: round2(value), Unit: unit}
	}
	return out
}

// NutritionNormalizer parses the input as a JSON nutrition object and
// normalizes it for the run's locale. The normalized values live in result
// metadata; the claim text itself is never rewritten.
type NutritionNormalizer struct{}

func NewNutritionNormalizer() *NutritionNormalizer { return &NutritionNormalizer{} }

func (n *NutritionNormalizer) Name() string { return "nutrition_normalizer" }

func (n *NutritionNormalizer) Apply(_ context.Context, input string, tc *pipeline.Context) (pipeline.Result, error) {
	var in NutritionInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return pipeline.ErrorResult(n.Name(), input, err), nil
	}

	normalized := NormalizeNutrition(in, tc.Locale)
	return pipeline.Result{
		Text: input,
		Metadata: map[string]any{
			"normalized": normalized,
			"basis":      "per_100g",
			"locale":     tc.Locale,
		},
	}, nil
}

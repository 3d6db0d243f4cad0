package pipeline

// ScoreCeiling is the trust score every run starts from before deductions.
const ScoreCeiling = 100

// Verdict bundles the aggregated outcome of one pipeline run.
type Verdict struct {
	Flags            []Flag   `json:"flags"`
	Score            int      `json:"score"`
	CorrelationID    string   `json:"correlationId"`
	DegradedMode     bool     `json:"degradedMode"`
	DegradedServices []string `json:"degradedServices,omitempty"`
}

// Aggregate concatenates flags in transform order without cross-transform
// deduplication and computes the deduction-based trust score, floored at 0.
func Aggregate(results []Result, tc *Context) Verdict {
	verdict := Verdict{
		Flags:         []Flag{},
		Score:         ScoreCeiling,
		CorrelationID: tc.CorrelationID,
	}

	for _, result := range results {
		verdict.Flags = append(verdict.Flags, result.Flags...)
		verdict.Score -= result.Deduction
		if result.Degraded {
			verdict.DegradedMode = true
			verdict.DegradedServices = append(verdict.DegradedServices, result.Transform)
		}
	}

	if verdict.Score < 0 {
		verdict.Score = 0
	}
	return verdict
}

package validate

import (
	"fmt"
	"math"

	"github.com/ppiankov/neurotrace/internal/model"
)

const minResolutionRate = 0.8

// ConflictWeight is the temporal coherence penalty of one conflict.
func ConflictWeight(s model.Severity) int {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return 15
	case model.SeverityMedium:
		return 7
	case model.SeverityLow:
		return 3
	}
	return 0
}

func (v *Validator) temporalCoherence(in Input) model.StageResult {
	var issues []model.ValidationIssue
	weighted := 0
	for _, c := range in.Conflicts {
		weighted += ConflictWeight(c.Severity)
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageTemporal,
			Severity:    c.Severity,
			Description: c.Explanation,
			FactIDs:     c.FactIDs,
		})
	}
	penalty := math.Min(float64(weighted), 100)

	total := len(in.Timeline.Events)
	resolved := in.Timeline.ResolvedCount()
	rate := 1.0
	if total > 0 {
		rate = float64(resolved) / float64(total)
	}
	if rate < minResolutionRate {
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageTemporal,
			Severity:    model.SeverityLow,
			Description: fmt.Sprintf("Only %d of %d facts could be placed on the timeline", resolved, total),
		})
	}

	return model.StageResult{
		Stage:  model.StageTemporal,
		Score:  round2(100 - penalty),
		Issues: issues,
		Data: map[string]interface{}{
			"conflicts":       len(in.Conflicts),
			"weighted":        weighted,
			"resolution_rate": round2(rate),
			"formula":         "100 - min(sum(conflict_weight), 100); high=15 medium=7 low=3",
		},
	}
}

package validate

import (
	"fmt"

	"github.com/ppiankov/neurotrace/internal/model"
)

func (v *Validator) accuracy(in Input) model.StageResult {
	threshold := v.cfg.MinConfidence

	var issues []model.ValidationIssue
	confident := 0
	for _, f := range model.SortedByID(in.Facts) {
		if f.Confidence >= threshold {
			confident++
			continue
		}
		sev := model.SeverityMedium
		if f.Confidence < threshold/2 {
			sev = model.SeverityHigh
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageAccuracy,
			Severity:    sev,
			Description: fmt.Sprintf("Low extraction confidence %.2f for %s (minimum %.2f)", f.Confidence, f, threshold),
			FactIDs:     []string{f.ID},
		})
	}

	return model.StageResult{
		Stage:  model.StageAccuracy,
		Score:  percent(confident, len(in.Facts)),
		Issues: issues,
		Data: map[string]interface{}{
			"facts":          len(in.Facts),
			"confident":      confident,
			"min_confidence": threshold,
			"formula":        "facts_at_or_above_threshold / facts * 100",
		},
	}
}

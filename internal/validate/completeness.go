package validate

import (
	"fmt"

	"github.com/ppiankov/neurotrace/internal/model"
)

// baseCategories must be documented for every patient.
var baseCategories = []model.EntityCategory{
	model.CategoryDiagnosis,
	model.CategoryProcedure,
	model.CategoryMedication,
}

// coOccurrence lists categories that require another category once present.
var coOccurrence = []struct {
	when model.EntityCategory
	need model.EntityCategory
}{
	{model.CategoryProcedure, model.CategoryDiagnosis},
	{model.CategoryMedication, model.CategoryDiagnosis},
	{model.CategoryImagingFinding, model.CategoryDiagnosis},
	{model.CategoryDischarge, model.CategoryPhysicalExam},
	{model.CategoryDischarge, model.CategoryMedication},
}

// expectedCategories are reported when absent but do not affect the score.
var expectedCategories = []model.EntityCategory{
	model.CategoryPhysicalExam,
	model.CategoryImagingFinding,
	model.CategoryLabValue,
}

// MissingExpectedCategories lists the usually documented categories with no
// present fact. An empty fact set expects nothing.
func MissingExpectedCategories(facts []model.AtomicClinicalFact) []model.EntityCategory {
	if len(facts) == 0 {
		return nil
	}
	present := make(map[model.EntityCategory]bool)
	for _, f := range facts {
		if f.Present() {
			present[f.Category] = true
		}
	}
	var out []model.EntityCategory
	for _, c := range expectedCategories {
		if !present[c] {
			out = append(out, c)
		}
	}
	return out
}

func (v *Validator) completeness(in Input) model.StageResult {
	present := make(map[model.EntityCategory]bool)
	for _, f := range in.Facts {
		if f.Present() {
			present[f.Category] = true
		}
	}

	// 1. Collect required categories: base set first, then co-occurrence needs
	severity := make(map[model.EntityCategory]model.Severity)
	var required []model.EntityCategory
	for _, c := range baseCategories {
		severity[c] = model.SeverityHigh
		required = append(required, c)
	}
	reason := make(map[model.EntityCategory]model.EntityCategory)
	for _, rule := range coOccurrence {
		if !present[rule.when] {
			continue
		}
		if _, ok := severity[rule.need]; !ok {
			severity[rule.need] = model.SeverityMedium
			reason[rule.need] = rule.when
			required = append(required, rule.need)
		}
	}

	// 2. Score present required categories
	var issues []model.ValidationIssue
	found := 0
	for _, c := range required {
		if present[c] {
			found++
			continue
		}
		desc := fmt.Sprintf("No %s documented", c)
		if why, ok := reason[c]; ok {
			desc = fmt.Sprintf("No %s documented although %s is present", c, why)
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageCompleteness,
			Severity:    severity[c],
			Description: desc,
		})
	}

	// 3. Expected but optional categories
	for _, c := range MissingExpectedCategories(in.Facts) {
		if _, isRequired := severity[c]; isRequired {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageCompleteness,
			Severity:    model.SeverityLow,
			Description: fmt.Sprintf("No %s documented", c),
		})
	}

	score := 0.0
	if len(required) > 0 {
		score = round2(float64(found) / float64(len(required)) * 100)
	}

	return model.StageResult{
		Stage:  model.StageCompleteness,
		Score:  score,
		Issues: issues,
		Data: map[string]interface{}{
			"required": len(required),
			"present":  found,
			"formula":  "present_required_categories / required_categories * 100",
		},
	}
}

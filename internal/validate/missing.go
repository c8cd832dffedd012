package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

// MissingRequiredFields lists, in fact id order, the present facts whose
// detail lacks a required field. Facts without required details are skipped.
func MissingRequiredFields(facts []model.AtomicClinicalFact) []model.MissingFields {
	var out []model.MissingFields
	for _, f := range model.SortedByID(facts) {
		// a negated medication carries no dose to document
		if !f.Present() {
			continue
		}
		missing, applies := model.RequiredDetailFields(f)
		if !applies || len(missing) == 0 {
			continue
		}
		out = append(out, model.MissingFields{FactID: f.ID, Category: f.Category, Name: f.Name, Fields: missing})
	}
	return out
}

func (v *Validator) missingData(in Input) model.StageResult {
	requiring := 0
	for _, f := range in.Facts {
		if _, applies := model.RequiredDetailFields(f); applies && f.Present() {
			requiring++
		}
	}

	missing := MissingRequiredFields(in.Facts)
	var issues []model.ValidationIssue
	for _, m := range missing {
		sev := model.SeverityLow
		if m.Category == model.CategoryMedication || m.Category == model.CategoryProcedure {
			sev = model.SeverityMedium
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageMissingData,
			Severity:    sev,
			Description: fmt.Sprintf("%s[%s:%s] is missing %s", m.FactID, m.Category, m.Name, strings.Join(m.Fields, ", ")),
			FactIDs:     []string{m.FactID},
			Field:       strings.Join(m.Fields, ","),
		})
	}
	complete := requiring - len(missing)

	return model.StageResult{
		Stage:  model.StageMissingData,
		Score:  percent(complete, requiring),
		Issues: issues,
		Data: map[string]interface{}{
			"requiring": requiring,
			"complete":  complete,
			"formula":   "facts_with_complete_details / facts_requiring_details * 100",
		},
	}
}

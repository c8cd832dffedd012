package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

// unitAliases folds equivalent unit spellings.
var unitAliases = map[string]string{
	"meq/l":   "mmol/l",
	"k/ul":    "10^9/l",
	"x10^9/l": "10^9/l",
	"10^3/ul": "10^9/l",
}

func normalizeUnit(u string) string {
	u = strings.ToLower(strings.ReplaceAll(u, " ", ""))
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

func (v *Validator) crossValidation(in Input) model.StageResult {
	var issues []model.ValidationIssue
	checked, inRange := 0, 0

	for _, f := range model.SortedByID(in.Facts) {
		if !f.Present() {
			continue
		}
		switch f.Category {
		case model.CategoryLabValue:
			issue, ok, counted := v.checkLab(f)
			if !counted {
				continue
			}
			checked++
			if ok {
				inRange++
			} else {
				issues = append(issues, issue)
			}
		case model.CategoryMedication:
			issue, ok, counted := v.checkDose(f)
			if !counted {
				continue
			}
			checked++
			if ok {
				inRange++
			} else {
				issues = append(issues, issue)
			}
		}
	}

	return model.StageResult{
		Stage:  model.StageCrossValidation,
		Score:  percent(inRange, checked),
		Issues: issues,
		Data: map[string]interface{}{
			"checked":  checked,
			"in_range": inRange,
			"formula":  "in_range / checked * 100",
		},
	}
}

// checkLab compares a lab value with its reference and plausible ranges.
// counted is false when no range applies.
func (v *Validator) checkLab(f model.AtomicClinicalFact) (issue model.ValidationIssue, ok bool, counted bool) {
	value, hasValue := f.Value()
	r, known := v.ranges.Lab(f.Name)
	if !hasValue || !known {
		return issue, false, false
	}
	if lab, isLab := f.Detail.(model.LabDetail); isLab && lab.Unit != "" && normalizeUnit(lab.Unit) != normalizeUnit(r.Unit) {
		return issue, false, false
	}

	if value >= r.Reference[0] && value <= r.Reference[1] {
		return issue, true, true
	}

	sev := model.SeverityMedium
	desc := fmt.Sprintf("%s %g %s outside reference range %g-%g", f.Name, value, r.Unit, r.Reference[0], r.Reference[1])
	if value < r.Plausible[0] || value > r.Plausible[1] {
		sev = model.SeverityHigh
		desc = fmt.Sprintf("%s %g %s outside plausible range %g-%g", f.Name, value, r.Unit, r.Plausible[0], r.Plausible[1])
	}
	return model.ValidationIssue{
		Stage:       model.StageCrossValidation,
		Severity:    sev,
		Description: desc,
		FactIDs:     []string{f.ID},
	}, false, true
}

// checkDose compares a single medication dose with adult bounds.
func (v *Validator) checkDose(f model.AtomicClinicalFact) (issue model.ValidationIssue, ok bool, counted bool) {
	med, isMed := f.Medication()
	if !isMed || med.DoseValue == nil {
		return issue, false, false
	}
	r, known := v.ranges.Dose(f.Name)
	if !known {
		return issue, false, false
	}
	mg, convertible := toMilligrams(*med.DoseValue, med.DoseUnit)
	if !convertible {
		return issue, false, false
	}

	if mg >= r.MinMG && mg <= r.MaxMG {
		return issue, true, true
	}

	sev := model.SeverityMedium
	if mg < r.MinMG*0.5 || mg > r.MaxMG*2 {
		sev = model.SeverityHigh
	}
	return model.ValidationIssue{
		Stage:       model.StageCrossValidation,
		Severity:    sev,
		Description: fmt.Sprintf("%s dose %gmg outside adult range %g-%gmg", f.Name, mg, r.MinMG, r.MaxMG),
		FactIDs:     []string{f.ID},
		Field:       "dose_value",
	}, false, true
}

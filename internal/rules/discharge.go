package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

// dischargeIntent returns facts that document a planned or completed discharge.
func dischargeIntent(in *Input) []model.AtomicClinicalFact {
	var out []model.AtomicClinicalFact
	for _, f := range in.Facts {
		if !f.InEncounter() {
			continue
		}
		if f.Category == model.CategoryDischarge || (f.Category != model.CategoryMedication && in.vocab.Name(f, ClassDischarge)) {
			out = append(out, f)
		}
	}
	return out
}

// stableExam reports whether an exam fact documents a stable neurological status.
func (in *Input) stableExam(f model.AtomicClinicalFact) bool {
	if exam, ok := f.Exam(); ok {
		if exam.Stable != nil {
			return *exam.Stable
		}
		if total, ok := exam.GCSTotal(); ok && total >= 14 && (exam.FocalDeficit == nil || !*exam.FocalDeficit) {
			return true
		}
		if in.vocab.Affirms(exam.MentalStatus, ClassStableExam) {
			return true
		}
	}
	return in.vocab.AffirmedMention(f, ClassStableExam)
}

func dischargeUnsafe(in *Input) []Trigger {
	discharge := dischargeIntent(in)
	if len(discharge) == 0 {
		return nil
	}

	var reasons []string

	stable := false
	for _, e := range in.Present(model.CategoryPhysicalExam) {
		if in.stableExam(e) {
			stable = true
			break
		}
	}
	if !stable {
		reasons = append(reasons, "no stable neurological exam documented")
	}

	var open []string
	for _, a := range in.OpenAlerts {
		if a.Severity.AtLeast(model.SeverityHigh) {
			open = append(open, a.RuleID)
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		reasons = append(reasons, fmt.Sprintf("open high-severity alerts: %s", strings.Join(dedupe(open), ", ")))
	}

	if len(reasons) == 0 {
		return nil
	}
	return []Trigger{{
		FactIDs:  factIDs(discharge),
		Message:  fmt.Sprintf("Discharge documented with unmet criteria: %s.", strings.Join(reasons, "; ")),
		Evidence: strings.Join(reasons, "; "),
	}}
}

func dischargeWithoutFollowUp(in *Input) []Trigger {
	discharge := dischargeIntent(in)
	if len(discharge) == 0 {
		return nil
	}
	if len(in.Present(model.CategoryFollowUp)) > 0 || len(in.PresentAny(ClassFollowUp)) > 0 {
		return nil
	}
	return []Trigger{{
		FactIDs:  factIDs(discharge),
		Message:  "Discharge planned without a documented follow-up appointment.",
		Evidence: "No follow-up appointment documented",
	}}
}

func dedupe(sorted []string) []string {
	var out []string
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

const (
	seizureCoverageWindow = 7 * 24 * time.Hour
	seizureCourseDays     = 7
)

// supratentorial reports whether a procedure is a craniotomy above the tentorium.
func (in *Input) supratentorial(f model.AtomicClinicalFact) bool {
	v := in.vocab
	if v.Text(f.Anatomy.BrainRegion, ClassInfratentorial) || v.Name(f, ClassInfratentorial) {
		return false
	}
	return v.Name(f, ClassCraniotomy) || v.Text(f.Anatomy.BrainRegion, ClassSupratentorialLobe)
}

func seizureProphylaxisMissing(in *Input) []Trigger {
	var procedures []model.AtomicClinicalFact
	for _, p := range in.Present(model.CategoryProcedure) {
		if p.InEncounter() && in.supratentorial(p) {
			procedures = append(procedures, p)
		}
	}
	if len(procedures) == 0 {
		return nil
	}

	meds := in.Present(model.CategoryMedication, ClassAnticonvulsant)

	var uncovered []model.AtomicClinicalFact
	for _, p := range procedures {
		covered := false
		for _, m := range meds {
			elapsed, ok := in.Elapsed(p, m)
			// an undated anticonvulsant still counts as documented
			if !ok || (elapsed >= -seizureCoverageWindow && elapsed <= seizureCoverageWindow) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, p)
		}
	}
	if len(uncovered) == 0 {
		return nil
	}

	return []Trigger{{
		FactIDs:  factIDs(uncovered),
		Message:  "Patient underwent supratentorial craniotomy but no seizure prophylaxis is documented within 7 days of surgery.",
		Evidence: fmt.Sprintf("Supratentorial procedure: %s", strings.Join(names(uncovered), ", ")),
	}}
}

func seizureCourseTooShort(in *Input) []Trigger {
	groups := make(map[string][]model.AtomicClinicalFact)
	var order []string
	for _, m := range in.Present(model.CategoryMedication, ClassAnticonvulsant) {
		if !m.InEncounter() {
			continue
		}
		course, ok := courseDays(m)
		if !ok || course >= seizureCourseDays {
			continue
		}
		key := strings.ToLower(m.Name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	var triggers []Trigger
	for _, key := range order {
		group := groups[key]
		course, _ := courseDays(group[0])
		triggers = append(triggers, Trigger{
			FactIDs:  factIDs(group),
			Message:  fmt.Sprintf("%s is documented for %d day(s); standard seizure prophylaxis runs %d days.", group[0].Name, course, seizureCourseDays),
			Evidence: fmt.Sprintf("%s course %d day(s)", group[0].Name, course),
		})
	}
	return triggers
}

// courseDays is the documented length of a medication course.
func courseDays(f model.AtomicClinicalFact) (int, bool) {
	med, ok := f.Medication()
	if !ok {
		return 0, false
	}
	if med.DurationDays != nil {
		return *med.DurationDays, true
	}
	if med.StartDate != nil && med.EndDate != nil {
		return model.DaysBetween(*med.StartDate, *med.EndDate), true
	}
	return 0, false
}

package rules

import (
	"fmt"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

func steroidWithoutTaper(in *Input) []Trigger {
	groups := make(map[string][]model.AtomicClinicalFact)
	tapered := make(map[string]bool)
	var order []string

	for _, m := range in.Present(model.CategoryMedication, ClassSteroid) {
		if !m.InEncounter() {
			continue
		}
		key := strings.ToLower(m.Name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
		if hasTaper(in, m) {
			tapered[key] = true
		}
	}

	var triggers []Trigger
	for _, key := range order {
		if tapered[key] {
			continue
		}
		group := groups[key]
		triggers = append(triggers, Trigger{
			FactIDs:  factIDs(group),
			Message:  fmt.Sprintf("Patient on %s without a documented taper schedule.", group[0].Name),
			Evidence: fmt.Sprintf("%s, no taper documented", group[0].Name),
		})
	}
	return triggers
}

func hasTaper(in *Input, f model.AtomicClinicalFact) bool {
	if med, ok := f.Medication(); ok && strings.TrimSpace(med.TaperSchedule) != "" {
		return true
	}
	return in.vocab.Mentions(f, ClassTaper)
}

func steroidWithoutGIProtection(in *Input) []Trigger {
	var steroids []model.AtomicClinicalFact
	for _, m := range in.Present(model.CategoryMedication, ClassSteroid) {
		if m.InEncounter() {
			steroids = append(steroids, m)
		}
	}
	if len(steroids) == 0 {
		return nil
	}
	if len(in.Present(model.CategoryMedication, ClassGIProtection)) > 0 {
		return nil
	}

	return []Trigger{{
		FactIDs:  factIDs(steroids),
		Message:  "Patient on corticosteroids without gastric protection.",
		Evidence: fmt.Sprintf("On %s without PPI/H2 blocker", strings.Join(names(steroids), ", ")),
	}}
}

package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

const (
	dvtWindowStart = 24 * time.Hour
	dvtWindowEnd   = 48 * time.Hour
)

func dvtProphylaxisMissing(in *Input) []Trigger {
	var procedures []model.AtomicClinicalFact
	for _, p := range in.Present(model.CategoryProcedure) {
		if p.InEncounter() {
			procedures = append(procedures, p)
		}
	}
	if len(procedures) == 0 {
		return nil
	}
	pod, ok := in.CurrentPOD()
	if !ok || pod < 1 {
		return nil
	}
	if len(in.Present(model.CategoryMedication, ClassDVTAnticoagulant)) > 0 {
		return nil
	}
	if len(in.PresentAny(ClassMechanicalDVT)) > 0 {
		return nil
	}

	return []Trigger{{
		FactIDs:  factIDs(procedures),
		Message:  "No DVT prophylaxis (pharmacologic or mechanical) documented post-operatively.",
		Evidence: fmt.Sprintf("Post-operative patient (POD %d) without DVT prophylaxis", pod),
	}}
}

func dvtTimingOutsideWindow(in *Input) []Trigger {
	var doses []model.AtomicClinicalFact
	for _, m := range in.Present(model.CategoryMedication, ClassDVTAnticoagulant) {
		if !m.InEncounter() {
			continue
		}
		if _, ok := in.SinceSurgery(m); ok {
			doses = append(doses, m)
		}
	}
	if len(doses) == 0 {
		return nil
	}

	first := in.Chronological(doses)[0]
	since, _ := in.SinceSurgery(first)
	if since >= dvtWindowStart && since <= dvtWindowEnd {
		return nil
	}

	when := "early"
	if since > dvtWindowEnd {
		when = "late"
	}
	return []Trigger{{
		FactIDs:  []string{first.ID},
		Message:  fmt.Sprintf("First pharmacologic DVT prophylaxis dose (%s) given %s: %.0fh after surgery, outside the 24-48h window.", first.Name, when, since.Hours()),
		Evidence: fmt.Sprintf("%s started %.0fh post-op", first.Name, since.Hours()),
	}}
}

// activeHemorrhage reports whether a fact documents a current bleed.
func (in *Input) activeHemorrhage(f model.AtomicClinicalFact) bool {
	if !f.InEncounter() {
		return false
	}
	switch f.Category {
	case model.CategoryImagingFinding:
		if img, ok := f.Imaging(); ok && img.Hemorrhage != nil {
			return *img.Hemorrhage
		}
		return in.vocab.Name(f, ClassHemorrhage)
	case model.CategoryDiagnosis, model.CategoryComplication:
		return in.vocab.Name(f, ClassHemorrhage)
	}
	return false
}

func dvtWithActiveHemorrhage(in *Input) []Trigger {
	var anticoagulants []model.AtomicClinicalFact
	for _, m := range in.Present(model.CategoryMedication, ClassDVTAnticoagulant) {
		if m.InEncounter() {
			anticoagulants = append(anticoagulants, m)
		}
	}
	if len(anticoagulants) == 0 {
		return nil
	}

	var bleeds []model.AtomicClinicalFact
	for _, f := range in.Facts {
		if in.activeHemorrhage(f) {
			bleeds = append(bleeds, f)
		}
	}
	if len(bleeds) == 0 {
		return nil
	}
	if len(in.PresentAny(ClassReversalAgent)) > 0 {
		return nil
	}

	return []Trigger{{
		FactIDs:  factIDs(anticoagulants, bleeds),
		Message:  fmt.Sprintf("Pharmacologic DVT prophylaxis (%s) prescribed with documented hemorrhage and no reversal.", strings.Join(names(anticoagulants), ", ")),
		Evidence: fmt.Sprintf("Hemorrhage documented: %s", strings.Join(names(bleeds), ", ")),
	}}
}

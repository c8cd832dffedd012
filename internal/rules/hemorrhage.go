package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

// preOperative reports whether a fact predates the index procedure.
func (in *Input) preOperative(f model.AtomicClinicalFact, surgery *time.Time) bool {
	if f.Historical {
		return true
	}
	ev := in.Event(f)
	if ev.ResolvedPOD != nil && *ev.ResolvedPOD < 0 {
		return true
	}
	return surgery != nil && ev.Timestamp != nil && ev.Timestamp.Before(*surgery)
}

// indexSurgery reports whether this encounter documents an operation: an
// in-encounter procedure or a surgery anchor that was not merely the earliest date.
func (in *Input) indexSurgery() bool {
	for _, p := range in.Present(model.CategoryProcedure) {
		if p.InEncounter() {
			return true
		}
	}
	anchor := in.Timeline.Anchor
	return anchor != nil && anchor.Surgery != nil && !anchor.Provisional
}

func antithromboticNotReversed(in *Input) []Trigger {
	if !in.indexSurgery() {
		return nil
	}
	var surgery *time.Time
	if ref, ok := in.SurgeryReference(); ok {
		surgery = &ref
	}

	var preop []model.AtomicClinicalFact
	for _, m := range in.Present(model.CategoryMedication, ClassAntithrombotic) {
		if in.preOperative(m, surgery) {
			preop = append(preop, m)
		}
	}
	if len(preop) == 0 {
		return nil
	}

	for _, r := range in.PresentAny(ClassReversalAgent) {
		ev := in.Event(r)
		// undated reversal is taken as documented
		if ev.Timestamp == nil && ev.ResolvedPOD == nil {
			return nil
		}
		if ev.ResolvedPOD != nil && *ev.ResolvedPOD <= 0 {
			return nil
		}
		if surgery != nil && ev.Timestamp != nil && !ev.Timestamp.After(*surgery) {
			return nil
		}
	}

	return []Trigger{{
		FactIDs:  factIDs(preop),
		Message:  "Patient on anticoagulant or antiplatelet therapy pre-operatively without documented reversal.",
		Evidence: fmt.Sprintf("Pre-op antithrombotic: %s", strings.Join(names(preop), ", ")),
	}}
}

func hemorrhageWithoutRiskFactors(in *Input) []Trigger {
	var bleeds []model.AtomicClinicalFact
	for _, f := range in.Present(model.CategoryImagingFinding) {
		if in.activeHemorrhage(f) {
			bleeds = append(bleeds, f)
		}
	}
	if len(bleeds) == 0 {
		return nil
	}

	riskDocumented := len(in.Present(model.CategoryMedication, ClassAntithrombotic, ClassDVTAnticoagulant)) > 0 ||
		len(in.Present(model.CategoryDiagnosis, ClassHypertension, ClassCoagulopathy)) > 0 ||
		len(in.Present(model.CategoryVitalSign, ClassBloodPressure)) > 0 ||
		len(in.Present(model.CategoryLabValue, ClassCoagulationLab)) > 0
	if riskDocumented {
		return nil
	}

	return []Trigger{{
		FactIDs:  factIDs(bleeds),
		Message:  "Hemorrhage on imaging with no documented blood pressure, coagulation or antithrombotic assessment.",
		Evidence: fmt.Sprintf("Imaging: %s", strings.Join(names(bleeds), ", ")),
	}}
}

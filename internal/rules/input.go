package rules

import (
	"sort"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Input is everything a rule predicate may look at. It is built once per
// evaluation and shared read-only by all rules.
type Input struct {
	Facts    []model.AtomicClinicalFact
	Timeline model.Timeline
	Context  model.PatientContext

	// OpenAlerts holds the alerts raised by rules outside the discharge
	// category, regardless of enable flags. Set by the engine before the
	// discharge rules run.
	OpenAlerts []model.ClinicalAlert

	vocab  *Vocabulary
	events map[string]model.TemporalEvent
}

// NewInput prepares an evaluation input. Facts are kept in id order.
func NewInput(facts []model.AtomicClinicalFact, tl model.Timeline, ctx model.PatientContext) *Input {
	in := &Input{
		Facts:    model.SortedByID(facts),
		Timeline: tl,
		Context:  ctx,
		vocab:    defaultVocabulary,
		events:   make(map[string]model.TemporalEvent, len(tl.Events)),
	}
	for _, e := range tl.Events {
		in.events[e.FactID] = e
	}
	return in
}

// Present returns facts of a category that assert something about the patient.
// A nil class matches every name.
func (in *Input) Present(cat model.EntityCategory, classes ...Class) []model.AtomicClinicalFact {
	var out []model.AtomicClinicalFact
	for _, f := range in.Facts {
		if f.Category != cat || !f.Present() {
			continue
		}
		if len(classes) > 0 && !in.nameInAny(f, classes) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// PresentAny returns present facts of any category whose name is in a class.
func (in *Input) PresentAny(classes ...Class) []model.AtomicClinicalFact {
	var out []model.AtomicClinicalFact
	for _, f := range in.Facts {
		if f.Present() && in.nameInAny(f, classes) {
			out = append(out, f)
		}
	}
	return out
}

func (in *Input) nameInAny(f model.AtomicClinicalFact, classes []Class) bool {
	for _, c := range classes {
		if in.vocab.Name(f, c) {
			return true
		}
	}
	return false
}

// Event returns the timeline event of a fact.
func (in *Input) Event(f model.AtomicClinicalFact) model.TemporalEvent {
	return in.events[f.ID]
}

// CurrentPOD is the context POD when given, else the latest resolved POD.
func (in *Input) CurrentPOD() (int, bool) {
	if in.Context.POD != nil {
		return *in.Context.POD, true
	}
	return in.Timeline.MaxResolvedPOD()
}

// Elapsed returns the time from a to b on the timeline.
func (in *Input) Elapsed(a, b model.AtomicClinicalFact) (time.Duration, bool) {
	return model.Elapsed(in.Event(a), in.Event(b))
}

// SurgeryReference is the best known time of the index procedure: a confirmed
// surgery anchor, else the earliest in-encounter procedure, else a provisional anchor.
func (in *Input) SurgeryReference() (time.Time, bool) {
	anchor := in.Timeline.Anchor
	if anchor != nil && anchor.Surgery != nil && !anchor.Provisional {
		return *anchor.Surgery, true
	}
	var best *time.Time
	for _, p := range in.Present(model.CategoryProcedure) {
		if !p.InEncounter() {
			continue
		}
		if ts := in.Event(p).Timestamp; ts != nil && (best == nil || ts.Before(*best)) {
			best = ts
		}
	}
	if best != nil {
		return *best, true
	}
	if anchor != nil && anchor.Surgery != nil {
		return *anchor.Surgery, true
	}
	return time.Time{}, false
}

// SinceSurgery returns how long after the index procedure a fact happened.
func (in *Input) SinceSurgery(f model.AtomicClinicalFact) (time.Duration, bool) {
	ev := in.Event(f)
	if ref, ok := in.SurgeryReference(); ok && ev.Timestamp != nil {
		return ev.Timestamp.Sub(ref), true
	}
	if ev.ResolvedPOD != nil {
		return days(*ev.ResolvedPOD), true
	}
	return 0, false
}

// Chronological sorts facts by resolved time, then resolved POD, then id.
// Facts with no temporal information sort last.
func (in *Input) Chronological(facts []model.AtomicClinicalFact) []model.AtomicClinicalFact {
	out := make([]model.AtomicClinicalFact, len(facts))
	copy(out, facts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := in.Event(out[i]), in.Event(out[j])
		if (a.Timestamp != nil) != (b.Timestamp != nil) {
			return a.Timestamp != nil
		}
		if a.Timestamp != nil && !a.Timestamp.Equal(*b.Timestamp) {
			return a.Timestamp.Before(*b.Timestamp)
		}
		if (a.ResolvedPOD != nil) != (b.ResolvedPOD != nil) {
			return a.ResolvedPOD != nil
		}
		if a.ResolvedPOD != nil && *a.ResolvedPOD != *b.ResolvedPOD {
			return *a.ResolvedPOD < *b.ResolvedPOD
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func factIDs(facts ...[]model.AtomicClinicalFact) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range facts {
		for _, f := range group {
			if !seen[f.ID] {
				seen[f.ID] = true
				out = append(out, f.ID)
			}
		}
	}
	sort.Strings(out)
	return out
}

func names(facts []model.AtomicClinicalFact) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range facts {
		if !seen[f.Name] {
			seen[f.Name] = true
			out = append(out, f.Name)
		}
	}
	return out
}

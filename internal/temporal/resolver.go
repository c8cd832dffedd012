// Package temporal places clinical facts on a patient timeline and detects
// temporal inconsistencies between them.
package temporal

import (
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Resolver turns an unordered fact set into an ordered timeline
type Resolver struct{}

// NewResolver creates a new resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve infers the anchors, resolves every fact to a timestamp where possible
// and returns the events in chronological order. Every input fact appears exactly
// once. Only structurally invalid input is an error.
func (r *Resolver) Resolve(facts []model.AtomicClinicalFact, ctx model.PatientContext) (model.Timeline, error) {
	if err := model.ValidateFacts(facts); err != nil {
		return model.Timeline{}, err
	}

	anchor := InferAnchor(facts, ctx)

	events := make([]model.TemporalEvent, 0, len(facts))
	for _, f := range facts {
		events = append(events, resolveFact(f, anchor))
	}

	sortEvents(events)

	return model.Timeline{Events: events, Anchor: anchor}, nil
}

// InferAnchor determines the surgery (POD 0) and admission (HD 1) reference dates.
// It returns nil when no reference point can be established.
func InferAnchor(facts []model.AtomicClinicalFact, ctx model.PatientContext) *model.AnchorDate {
	anchor := &model.AnchorDate{}

	// Historical, negated and family-history facts never anchor this encounter.
	var encounter []model.AtomicClinicalFact
	for _, f := range facts {
		if f.InEncounter() {
			encounter = append(encounter, f)
		}
	}

	// 1. Surgery anchor
	switch {
	case ctx.SurgeryDate != nil:
		anchor.Surgery = model.TimePtr(*ctx.SurgeryDate)
		anchor.SurgerySource = model.AnchorFromContext
	default:
		if t, ok := earliestSurgeryDayMarker(encounter); ok {
			anchor.Surgery = &t
			anchor.SurgerySource = model.AnchorFromSurgeryDay
		} else if t, ok := consensusAnchor(encounter, podOffset); ok {
			anchor.Surgery = &t
			anchor.SurgerySource = model.AnchorFromPODConsensus
		} else if t, ok := earliestDate(encounter, nil); ok {
			anchor.Surgery = &t
			anchor.SurgerySource = model.AnchorFromEarliestDate
			anchor.Provisional = true
		}
	}

	// 2. Admission anchor
	isAdmission := func(f model.AtomicClinicalFact) bool {
		return f.Category == model.CategoryAdmission
	}
	switch {
	case ctx.AdmissionDate != nil:
		anchor.Admission = model.TimePtr(*ctx.AdmissionDate)
		anchor.AdmissionSource = model.AnchorFromContext
	default:
		if t, ok := earliestDate(encounter, isAdmission); ok {
			anchor.Admission = &t
			anchor.AdmissionSource = model.AnchorFromAdmission
		} else if t, ok := consensusAnchor(encounter, hdOffset); ok {
			anchor.Admission = &t
			anchor.AdmissionSource = model.AnchorFromHDConsensus
		} else if anchor.Surgery != nil {
			anchor.Admission = model.TimePtr(*anchor.Surgery)
			anchor.AdmissionSource = model.AnchorFromSurgery
		}
	}

	if anchor.Surgery == nil && anchor.Admission == nil {
		return nil
	}
	return anchor
}

// earliestSurgeryDayMarker finds dated facts explicitly placed on the day of surgery.
func earliestSurgeryDayMarker(facts []model.AtomicClinicalFact) (time.Time, bool) {
	return earliestDate(facts, func(f model.AtomicClinicalFact) bool {
		return f.Temporal.MarksSurgeryDay()
	})
}

// earliestDate returns the earliest absolute date among facts matching keep
// (all facts when keep is nil). Ties resolve to the smallest fact id.
func earliestDate(facts []model.AtomicClinicalFact, keep func(model.AtomicClinicalFact) bool) (time.Time, bool) {
	var best time.Time
	bestID := ""
	found := false
	for _, f := range facts {
		if keep != nil && !keep(f) {
			continue
		}
		h := f.Temporal.Hint()
		if h.Kind != model.HintAbsolute {
			continue
		}
		if !found || h.Date.Before(best) || (h.Date.Equal(best) && f.ID < bestID) {
			best, bestID, found = h.Date, f.ID, true
		}
	}
	return best, found
}

// offsetFunc returns how many days after the anchor a fact claims to be.
type offsetFunc func(*model.TemporalContext) (int, bool)

func podOffset(tc *model.TemporalContext) (int, bool) {
	if tc == nil || tc.POD == nil {
		return 0, false
	}
	return *tc.POD, true
}

func hdOffset(tc *model.TemporalContext) (int, bool) {
	if tc == nil || tc.HospitalDay == nil {
		return 0, false
	}
	return *tc.HospitalDay - 1, true
}

// consensusAnchor votes on date - offset across facts that carry both an absolute
// date and a relative day. The most common candidate wins; ties go to the earliest.
func consensusAnchor(facts []model.AtomicClinicalFact, offset offsetFunc) (time.Time, bool) {
	votes := make(map[time.Time]int)
	for _, f := range facts {
		if f.Temporal == nil || f.Temporal.Date == nil {
			continue
		}
		days, ok := offset(f.Temporal)
		if !ok {
			continue
		}
		candidate := model.AddDays(model.DayStart(*f.Temporal.Date), -days)
		votes[candidate]++
	}
	if len(votes) == 0 {
		return time.Time{}, false
	}

	var best time.Time
	bestVotes := 0
	for candidate, n := range votes {
		if n > bestVotes || (n == bestVotes && candidate.Before(best)) {
			best, bestVotes = candidate, n
		}
	}
	return best, true
}

// resolveFact converts one fact into a timeline event.
func resolveFact(f model.AtomicClinicalFact, anchor *model.AnchorDate) model.TemporalEvent {
	ev := model.TemporalEvent{
		FactID:      f.ID,
		Category:    f.Category,
		Name:        f.Name,
		Rank:        model.RankUnknown,
		InEncounter: f.InEncounter(),
	}
	if f.Temporal != nil {
		ev.StatedPOD = copyInt(f.Temporal.POD)
		ev.ResolvedHD = copyInt(f.Temporal.HospitalDay)
	}

	var surgery, admission *time.Time
	if anchor != nil {
		surgery, admission = anchor.Surgery, anchor.Admission
	}

	h := f.Temporal.Hint()
	ev.Source = h.Kind
	switch h.Kind {
	case model.HintAbsolute:
		ev.Timestamp = model.TimePtr(h.Date)
	case model.HintRelativeToAnchor:
		if surgery != nil {
			ev.Timestamp = model.TimePtr(model.AddDays(*surgery, h.POD))
		}
	case model.HintRelativeToAdmission:
		if admission != nil {
			ev.Timestamp = model.TimePtr(model.AddDays(*admission, h.HospitalDay-1))
		}
	}
	if ev.Timestamp == nil {
		ev.Source = model.HintUnresolved
	}
	ev.SourceLabel = ev.Source.String()

	switch {
	case ev.StatedPOD != nil:
		ev.ResolvedPOD = copyInt(ev.StatedPOD)
	case ev.Timestamp != nil && surgery != nil:
		ev.ResolvedPOD = model.IntPtr(model.DaysBetween(*surgery, *ev.Timestamp))
	}
	if ev.ResolvedHD == nil && ev.Timestamp != nil && admission != nil {
		ev.ResolvedHD = model.IntPtr(model.DaysBetween(*admission, *ev.Timestamp) + 1)
	}

	if med, ok := f.Medication(); ok {
		ev.StateStart = med.StartDate
		ev.StateEnd = med.EndDate
		ev.StateDays = copyInt(med.DurationDays)
	}
	return ev
}

// sortEvents orders resolved events by (timestamp, stated POD, fact id) and
// appends unresolved events ordered by fact id. Ranks follow the final order.
func sortEvents(events []model.TemporalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Resolved() != b.Resolved() {
			return a.Resolved()
		}
		if a.Resolved() && !a.Timestamp.Equal(*b.Timestamp) {
			return a.Timestamp.Before(*b.Timestamp)
		}
		if a.Resolved() {
			switch {
			case a.StatedPOD != nil && b.StatedPOD == nil:
				return true
			case a.StatedPOD == nil && b.StatedPOD != nil:
				return false
			case a.StatedPOD != nil && *a.StatedPOD != *b.StatedPOD:
				return *a.StatedPOD < *b.StatedPOD
			}
		}
		return strings.Compare(a.FactID, b.FactID) < 0
	})

	for i := range events {
		if events[i].Resolved() {
			events[i].Rank = i
		}
	}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

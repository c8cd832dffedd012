package model

import (
	"encoding/json"
	"sort"
	"time"
)

// RankUnknown is the rank of an event whose time could not be resolved.
const RankUnknown = -1

// TemporalEvent is a fact placed on the patient timeline
type TemporalEvent struct {
	FactID      string         `json:"fact_id"`
	Category    EntityCategory `json:"category"`
	Name        string         `json:"name"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`    // Nil when unresolved
	Source      HintKind       `json:"-"`                      // Which hint produced Timestamp
	SourceLabel string         `json:"source"`                 // Source.String(), for reports
	StatedPOD   *int           `json:"stated_pod,omitempty"`   // POD given in the note
	ResolvedPOD *int           `json:"resolved_pod,omitempty"` // Stated or derived from the anchor
	ResolvedHD  *int           `json:"resolved_hd,omitempty"`
	Rank        int            `json:"rank"` // Position in chronological order, RankUnknown if unresolved

	InEncounter bool       `json:"in_encounter"`          // False for historical, negated or family-history facts
	StateStart  *time.Time `json:"state_start,omitempty"` // Bounded clinical state (medication course)
	StateEnd    *time.Time `json:"state_end,omitempty"`
	StateDays   *int       `json:"state_days,omitempty"`
}

// UnmarshalJSON restores Source from the serialized source label.
func (e *TemporalEvent) UnmarshalJSON(data []byte) error {
	type plain TemporalEvent
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}
	e.Source = ParseHintKind(e.SourceLabel)
	return nil
}

// Resolved reports whether the event has a timestamp.
func (e TemporalEvent) Resolved() bool {
	return e.Timestamp != nil
}

// AnchorSource records how an anchor date was inferred.
type AnchorSource string

const (
	AnchorFromContext      AnchorSource = "context"
	AnchorFromSurgeryDay   AnchorSource = "surgery_day_marker"
	AnchorFromPODConsensus AnchorSource = "pod_consensus"
	AnchorFromEarliestDate AnchorSource = "earliest_date"
	AnchorFromAdmission    AnchorSource = "admission_fact"
	AnchorFromHDConsensus  AnchorSource = "hospital_day_consensus"
	AnchorFromSurgery      AnchorSource = "surgery_anchor"
)

// AnchorDate holds the reference points for relative times.
type AnchorDate struct {
	Surgery         *time.Time   `json:"surgery,omitempty"`
	SurgerySource   AnchorSource `json:"surgery_source,omitempty"`
	Admission       *time.Time   `json:"admission,omitempty"`
	AdmissionSource AnchorSource `json:"admission_source,omitempty"`
	Provisional     bool         `json:"provisional,omitempty"` // Surgery anchor is a best guess
}

// Timeline is the ordered list of events plus the anchors used to build it.
type Timeline struct {
	Events []TemporalEvent `json:"events"`
	Anchor *AnchorDate     `json:"anchor,omitempty"`
}

// Event returns the event for a fact id.
func (t Timeline) Event(factID string) (TemporalEvent, bool) {
	for _, e := range t.Events {
		if e.FactID == factID {
			return e, true
		}
	}
	return TemporalEvent{}, false
}

// ResolvedCount is the number of events with a timestamp.
func (t Timeline) ResolvedCount() int {
	n := 0
	for _, e := range t.Events {
		if e.Resolved() {
			n++
		}
	}
	return n
}

// MaxResolvedPOD is the largest resolved POD on the timeline.
func (t Timeline) MaxResolvedPOD() (int, bool) {
	best, found := 0, false
	for _, e := range t.Events {
		if e.ResolvedPOD != nil && (!found || *e.ResolvedPOD > best) {
			best, found = *e.ResolvedPOD, true
		}
	}
	return best, found
}

// TimelineSummary condenses a timeline for reports and the timeline command.
type TimelineSummary struct {
	TotalEvents    int                    `json:"total_events"`
	ResolvedEvents int                    `json:"resolved_events"`
	Anchor         *time.Time             `json:"anchor,omitempty"` // Surgery anchor
	Categories     map[EntityCategory]int `json:"categories"`       // Events per category
	Start          *time.Time             `json:"start,omitempty"`  // Earliest resolved time
	End            *time.Time             `json:"end,omitempty"`    // Latest resolved time
	Conflicts      int                    `json:"conflicts"`
	HighConflicts  int                    `json:"high_conflicts"` // At or above high severity
}

// Summary counts events and conflicts and finds the resolved date range.
func (t Timeline) Summary(conflicts []Conflict) TimelineSummary {
	s := TimelineSummary{
		TotalEvents: len(t.Events),
		Categories:  make(map[EntityCategory]int),
		Conflicts:   len(conflicts),
	}
	if t.Anchor != nil && t.Anchor.Surgery != nil {
		s.Anchor = TimePtr(*t.Anchor.Surgery)
	}
	for _, e := range t.Events {
		s.Categories[e.Category]++
		if !e.Resolved() {
			continue
		}
		s.ResolvedEvents++
		if s.Start == nil || e.Timestamp.Before(*s.Start) {
			s.Start = TimePtr(*e.Timestamp)
		}
		if s.End == nil || e.Timestamp.After(*s.End) {
			s.End = TimePtr(*e.Timestamp)
		}
	}
	for _, c := range conflicts {
		if c.Severity.AtLeast(SeverityHigh) {
			s.HighConflicts++
		}
	}
	return s
}

// Between returns the resolved events from one instant to another, both
// inclusive, in timeline order.
func (t Timeline) Between(from, to time.Time) []TemporalEvent {
	var out []TemporalEvent
	for _, e := range t.Events {
		if e.Resolved() && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	return out
}

// Elapsed returns the time from a to b using resolved timestamps, else the
// POD difference, else the hospital-day difference.
func Elapsed(a, b TemporalEvent) (time.Duration, bool) {
	switch {
	case a.Timestamp != nil && b.Timestamp != nil:
		return b.Timestamp.Sub(*a.Timestamp), true
	case a.ResolvedPOD != nil && b.ResolvedPOD != nil:
		return time.Duration(*b.ResolvedPOD-*a.ResolvedPOD) * 24 * time.Hour, true
	case a.ResolvedHD != nil && b.ResolvedHD != nil:
		return time.Duration(*b.ResolvedHD-*a.ResolvedHD) * 24 * time.Hour, true
	}
	return 0, false
}

// Distance is the absolute time between two facts on the timeline.
func (t Timeline) Distance(a, b string) (time.Duration, bool) {
	ea, ok := t.Event(a)
	if !ok {
		return 0, false
	}
	eb, ok := t.Event(b)
	if !ok {
		return 0, false
	}
	d, ok := Elapsed(ea, eb)
	if d < 0 {
		d = -d
	}
	return d, ok
}

// RelatedEvent is an event near another one on the timeline.
type RelatedEvent struct {
	Event    TemporalEvent `json:"event"`
	Distance time.Duration `json:"distance"`
}

// Related returns the resolved events within maxDays of a resolved fact,
// nearest first. An unknown or unresolved fact has no related events.
func (t Timeline) Related(factID string, maxDays int) []RelatedEvent {
	target, ok := t.Event(factID)
	if !ok || !target.Resolved() {
		return nil
	}
	limit := time.Duration(maxDays) * 24 * time.Hour

	var out []RelatedEvent
	for _, e := range t.Events {
		if e.FactID == factID || !e.Resolved() {
			continue
		}
		d := e.Timestamp.Sub(*target.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= limit {
			out = append(out, RelatedEvent{Event: e, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Event.FactID < out[j].Event.FactID
	})
	return out
}

// ConflictKind classifies a temporal conflict
type ConflictKind string

const (
	ConflictPODMismatch        ConflictKind = "pod_mismatch"
	ConflictImpossibleSequence ConflictKind = "impossible_sequence"
	ConflictDurationViolation  ConflictKind = "duration_violation"
	ConflictMaxPODViolation    ConflictKind = "max_pod_violation"
)

// Conflict is a temporal inconsistency between one or two facts.
type Conflict struct {
	ID          string       `json:"id"`
	Kind        ConflictKind `json:"kind"`
	FactIDs     []string     `json:"fact_ids"`
	Explanation string       `json:"explanation"`
	Severity    Severity     `json:"severity"`
}

package temporal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Detector finds temporal inconsistencies on a resolved timeline
type Detector struct {
	cfg model.TemporalConfig
}

// NewDetector creates a detector with the given limits
func NewDetector(cfg model.TemporalConfig) *Detector {
	return &Detector{cfg: cfg}
}

// sequenceRule states that events of category After may not fall on an
// earlier calendar day than events of any category in NotBefore.
type sequenceRule struct {
	After     model.EntityCategory
	NotBefore []model.EntityCategory
	Reason    string
}

var sequenceRules = []sequenceRule{
	{
		After:     model.CategoryProcedure,
		NotBefore: []model.EntityCategory{model.CategoryAdmission},
		Reason:    "procedure dated before admission",
	},
	{
		After:     model.CategoryDischarge,
		NotBefore: []model.EntityCategory{model.CategoryAdmission},
		Reason:    "discharge dated before admission",
	},
	{
		After: model.CategoryDischarge,
		NotBefore: []model.EntityCategory{
			model.CategoryProcedure, model.CategoryMedication, model.CategoryLabValue,
			model.CategoryVitalSign, model.CategoryPhysicalExam, model.CategoryImagingFinding,
			model.CategorySymptom, model.CategoryComplication, model.CategoryDiagnosis,
		},
		Reason: "discharge dated before an in-hospital event",
	},
}

var kindOrder = map[model.ConflictKind]int{
	model.ConflictPODMismatch:        0,
	model.ConflictImpossibleSequence: 1,
	model.ConflictDurationViolation:  2,
	model.ConflictMaxPODViolation:    3,
}

// Detect runs every check independently and returns the conflicts in a stable
// order (kind, then fact ids).
func (d *Detector) Detect(events []model.TemporalEvent, anchor *model.AnchorDate) []model.Conflict {
	var conflicts []model.Conflict

	conflicts = append(conflicts, d.checkPODMismatch(events, anchor)...)
	conflicts = append(conflicts, d.checkSequence(events)...)
	conflicts = append(conflicts, d.checkDurations(events)...)
	conflicts = append(conflicts, d.checkMaxPOD(events)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if kindOrder[a.Kind] != kindOrder[b.Kind] {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return strings.Join(a.FactIDs, ",") < strings.Join(b.FactIDs, ",")
	})
	return conflicts
}

func newConflict(kind model.ConflictKind, sev model.Severity, explanation string, factIDs ...string) model.Conflict {
	return model.Conflict{
		ID:          fmt.Sprintf("%s:%s", kind, strings.Join(factIDs, ",")),
		Kind:        kind,
		FactIDs:     factIDs,
		Explanation: explanation,
		Severity:    sev,
	}
}

// checkPODMismatch compares a dated fact's stated POD against the surgery anchor.
func (d *Detector) checkPODMismatch(events []model.TemporalEvent, anchor *model.AnchorDate) []model.Conflict {
	if anchor == nil || anchor.Surgery == nil {
		return nil
	}

	var out []model.Conflict
	for _, e := range events {
		if e.Source != model.HintAbsolute || e.StatedPOD == nil || e.Timestamp == nil {
			continue
		}
		expected := model.AddDays(*anchor.Surgery, *e.StatedPOD)
		drift := model.DaysBetween(expected, *e.Timestamp)
		if abs(drift) <= d.cfg.ToleranceDays {
			continue
		}
		out = append(out, newConflict(model.ConflictPODMismatch, model.SeverityMedium,
			fmt.Sprintf("%s is dated %s but stated as POD %d, which places it on %s (%+d days)",
				e.FactID, day(*e.Timestamp), *e.StatedPOD, day(expected), drift),
			e.FactID))
	}
	return out
}

// checkSequence applies the fixed partial-order table at calendar-day granularity.
func (d *Detector) checkSequence(events []model.TemporalEvent) []model.Conflict {
	byCategory := make(map[model.EntityCategory][]model.TemporalEvent)
	for _, e := range events {
		if e.Resolved() && e.InEncounter {
			byCategory[e.Category] = append(byCategory[e.Category], e)
		}
	}

	seen := make(map[string]bool)
	var out []model.Conflict
	for _, rule := range sequenceRules {
		for _, later := range byCategory[rule.After] {
			for _, cat := range rule.NotBefore {
				for _, earlier := range byCategory[cat] {
					if later.FactID == earlier.FactID {
						continue
					}
					if model.DaysBetween(*earlier.Timestamp, *later.Timestamp) >= 0 {
						continue
					}
					key := pairKey(later.FactID, earlier.FactID)
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, newConflict(model.ConflictImpossibleSequence, model.SeverityHigh,
						fmt.Sprintf("%s: %s %q (%s) precedes %s %q (%s)",
							rule.Reason, later.Category, later.Name, day(*later.Timestamp),
							earlier.Category, earlier.Name, day(*earlier.Timestamp)),
						later.FactID, earlier.FactID))
				}
			}
		}
	}
	return out
}

// checkDurations flags bounded states with negative or implausibly long spans,
// overlong stays and distinct procedures recorded minutes apart.
func (d *Detector) checkDurations(events []model.TemporalEvent) []model.Conflict {
	maxDays := d.cfg.MaxStateDurationDays
	var out []model.Conflict

	for _, e := range events {
		if e.StateStart != nil && e.StateEnd != nil {
			span := model.DaysBetween(*e.StateStart, *e.StateEnd)
			if span < 0 || span > maxDays {
				out = append(out, newConflict(model.ConflictDurationViolation, model.SeverityMedium,
					fmt.Sprintf("%s %q runs %s to %s (%d days, allowed 0-%d)",
						e.Category, e.Name, day(*e.StateStart), day(*e.StateEnd), span, maxDays),
					e.FactID))
				continue
			}
		}
		if e.StateDays != nil && (*e.StateDays < 0 || *e.StateDays > maxDays) {
			out = append(out, newConflict(model.ConflictDurationViolation, model.SeverityMedium,
				fmt.Sprintf("%s %q has a stated duration of %d days (allowed 0-%d)",
					e.Category, e.Name, *e.StateDays, maxDays),
				e.FactID))
		}
	}

	var admissions, discharges, procedures []model.TemporalEvent
	for _, e := range events {
		if !e.Resolved() || !e.InEncounter {
			continue
		}
		switch e.Category {
		case model.CategoryAdmission:
			admissions = append(admissions, e)
		case model.CategoryDischarge:
			discharges = append(discharges, e)
		case model.CategoryProcedure:
			procedures = append(procedures, e)
		}
	}

	for _, a := range admissions {
		for _, dis := range discharges {
			stay := model.DaysBetween(*a.Timestamp, *dis.Timestamp)
			if stay > maxDays {
				out = append(out, newConflict(model.ConflictDurationViolation, model.SeverityMedium,
					fmt.Sprintf("stay from %s to %s lasts %d days (allowed %d)",
						day(*a.Timestamp), day(*dis.Timestamp), stay, maxDays),
					a.FactID, dis.FactID))
			}
		}
	}

	if gap := d.cfg.ProcedureGapMinutes; gap > 0 {
		sort.SliceStable(procedures, func(i, j int) bool {
			return procedures[i].Timestamp.Before(*procedures[j].Timestamp)
		})
		for i := 0; i+1 < len(procedures); i++ {
			a, b := procedures[i], procedures[i+1]
			delta := b.Timestamp.Sub(*a.Timestamp)
			if delta > time.Minute && delta < time.Duration(gap)*time.Minute {
				out = append(out, newConflict(model.ConflictDurationViolation, model.SeverityMedium,
					fmt.Sprintf("procedures %q and %q recorded %.0f minutes apart",
						a.Name, b.Name, delta.Minutes()),
					a.FactID, b.FactID))
			}
		}
	}
	return out
}

// checkMaxPOD flags resolved PODs beyond the configured ceiling.
func (d *Detector) checkMaxPOD(events []model.TemporalEvent) []model.Conflict {
	var out []model.Conflict
	for _, e := range events {
		if e.ResolvedPOD == nil || *e.ResolvedPOD <= d.cfg.PODCeiling {
			continue
		}
		out = append(out, newConflict(model.ConflictMaxPODViolation, model.SeverityHigh,
			fmt.Sprintf("%s %q resolves to POD %d, beyond the ceiling of %d",
				e.Category, e.Name, *e.ResolvedPOD, d.cfg.PODCeiling),
			e.FactID))
	}
	return out
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

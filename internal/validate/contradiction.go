package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

func (v *Validator) contradiction(in Input) model.StageResult {
	facts := model.SortedByID(in.Facts)
	events := make(map[string]model.TemporalEvent, len(in.Timeline.Events))
	for _, e := range in.Timeline.Events {
		events[e.FactID] = e
	}

	var issues []model.ValidationIssue
	issues = append(issues, lateralityContradictions(facts)...)
	issues = append(issues, v.valueContradictions(facts, events)...)
	issues = append(issues, negationContradictions(facts, events)...)
	issues = append(issues, v.implausibleChanges(facts, events)...)

	return model.StageResult{
		Stage:  model.StageContradiction,
		Score:  round2(100 - math.Min(float64(10*len(issues)), 100)),
		Issues: issues,
		Data: map[string]interface{}{
			"contradictions": len(issues),
			"formula":        "100 - min(10 * contradictions, 100)",
		},
	}
}

// groupKey joins key parts into a stable map key.
func groupKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "\x00")
}

// orderedKeys returns map keys in sorted order.
func orderedKeys(m map[string][]model.AtomicClinicalFact) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ids(facts []model.AtomicClinicalFact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.ID
	}
	sort.Strings(out)
	return out
}

// lateralityContradictions finds the same structure documented on both sides.
func lateralityContradictions(facts []model.AtomicClinicalFact) []model.ValidationIssue {
	groups := make(map[string][]model.AtomicClinicalFact)
	for _, f := range facts {
		if !f.Present() {
			continue
		}
		side := f.Anatomy.Laterality
		if side != model.LateralityLeft && side != model.LateralityRight {
			continue
		}
		site := f.Anatomy.Structure
		if site == "" {
			site = f.Anatomy.BrainRegion
		}
		key := groupKey(string(f.Category), f.Name, site)
		groups[key] = append(groups[key], f)
	}

	var issues []model.ValidationIssue
	for _, key := range orderedKeys(groups) {
		group := groups[key]
		left, right := false, false
		for _, f := range group {
			left = left || f.Anatomy.Laterality == model.LateralityLeft
			right = right || f.Anatomy.Laterality == model.LateralityRight
		}
		if !left || !right {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageContradiction,
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("%s documented as both left and right", group[0].Name),
			FactIDs:     ids(group),
		})
	}
	return issues
}

// resolvedTime keys a fact by the instant it resolved to on the timeline.
// Facts that stay unanchored fall back to their stated POD, then hospital day.
func resolvedTime(events map[string]model.TemporalEvent, f model.AtomicClinicalFact) (string, bool) {
	ev, ok := events[f.ID]
	switch {
	case !ok:
		return "", false
	case ev.Timestamp != nil:
		return ev.Timestamp.UTC().Format(time.RFC3339Nano), true
	case ev.StatedPOD != nil:
		return fmt.Sprintf("pod %d", *ev.StatedPOD), true
	case ev.ResolvedHD != nil:
		return fmt.Sprintf("hd %d", *ev.ResolvedHD), true
	}
	return "", false
}

// measurementName folds analyte aliases so "Na" and "sodium" compare equal.
func (v *Validator) measurementName(name string) string {
	if r, ok := v.ranges.Lab(name); ok {
		return r.Names[0]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// valueContradictions finds different values for one measurement at one resolved time.
func (v *Validator) valueContradictions(facts []model.AtomicClinicalFact, events map[string]model.TemporalEvent) []model.ValidationIssue {
	groups := make(map[string][]model.AtomicClinicalFact)
	for _, f := range facts {
		if !f.Present() {
			continue
		}
		if _, ok := f.Value(); !ok {
			continue
		}
		when, ok := resolvedTime(events, f)
		if !ok {
			continue
		}
		key := groupKey(string(f.Category), v.measurementName(f.Name), when)
		groups[key] = append(groups[key], f)
	}

	var issues []model.ValidationIssue
	for _, key := range orderedKeys(groups) {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, f := range group {
			val, _ := f.Value()
			lo, hi = math.Min(lo, val), math.Max(hi, val)
		}
		scale := math.Max(math.Abs(lo), math.Abs(hi))
		if scale == 0 || (hi-lo)/scale <= v.cfg.ValueConflictTolerance {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageContradiction,
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("%s has conflicting values %g and %g at the same time", group[0].Name, lo, hi),
			FactIDs:     ids(group),
		})
	}
	return issues
}

// negationContradictions finds a fact both asserted and negated at one resolved time.
func negationContradictions(facts []model.AtomicClinicalFact, events map[string]model.TemporalEvent) []model.ValidationIssue {
	groups := make(map[string][]model.AtomicClinicalFact)
	for _, f := range facts {
		if f.FamilyHistory {
			continue
		}
		when, ok := resolvedTime(events, f)
		if !ok {
			continue
		}
		key := groupKey(string(f.Category), f.Name, when)
		groups[key] = append(groups[key], f)
	}

	var issues []model.ValidationIssue
	for _, key := range orderedKeys(groups) {
		group := groups[key]
		affirmed, negated := false, false
		for _, f := range group {
			affirmed = affirmed || !f.Negated
			negated = negated || f.Negated
		}
		if !affirmed || !negated {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			Stage:       model.StageContradiction,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("%s is both affirmed and negated at the same time", group[0].Name),
			FactIDs:     ids(group),
		})
	}
	return issues
}

// implausibleChanges applies the configured per-analyte change limits to
// consecutive timed measurements.
func (v *Validator) implausibleChanges(facts []model.AtomicClinicalFact, events map[string]model.TemporalEvent) []model.ValidationIssue {
	type point struct {
		fact  model.AtomicClinicalFact
		at    time.Time
		value float64
	}

	var issues []model.ValidationIssue
	for _, limit := range v.cfg.ImplausibleChange {
		target := v.measurementName(limit.Name)
		window := time.Duration(limit.WindowHours * float64(time.Hour))

		var series []point
		for _, f := range facts {
			if !f.InEncounter() || v.measurementName(f.Name) != target {
				continue
			}
			val, ok := f.Value()
			ev := events[f.ID]
			if !ok || ev.Timestamp == nil {
				continue
			}
			series = append(series, point{fact: f, at: *ev.Timestamp, value: val})
		}
		sort.SliceStable(series, func(i, j int) bool {
			if !series[i].at.Equal(series[j].at) {
				return series[i].at.Before(series[j].at)
			}
			return series[i].fact.ID < series[j].fact.ID
		})

		for i := 1; i < len(series); i++ {
			prev, curr := series[i-1], series[i]
			elapsed := curr.at.Sub(prev.at)
			// same-time disagreements are value contradictions
			if elapsed <= 0 || elapsed > window {
				continue
			}
			delta := math.Abs(curr.value - prev.value)
			if delta <= limit.MaxDelta {
				continue
			}
			desc := fmt.Sprintf("%s changed by %g within %.0fh (limit %g per %gh)",
				prev.fact.Name, delta, elapsed.Hours(), limit.MaxDelta, limit.WindowHours)
			issues = append(issues, model.ValidationIssue{
				Stage:       model.StageContradiction,
				Severity:    model.SeverityHigh,
				Description: desc,
				FactIDs:     ids([]model.AtomicClinicalFact{prev.fact, curr.fact}),
			})
		}
	}
	return issues
}

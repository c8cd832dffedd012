package rules

import (
	"sort"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Engine evaluates the rule catalogue against a fact set
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the built-in catalogue
func NewEngine() *Engine {
	return &Engine{rules: Catalogue()}
}

// Rules returns the rules this engine evaluates.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate runs every rule and returns the alerts of enabled categories,
// most severe first. Rules that do not fire produce nothing.
func (e *Engine) Evaluate(in *Input, enabled model.RulesConfig) []model.ClinicalAlert {
	// 1. Everything except discharge readiness, with no category filter,
	// so the discharge rules see all open alerts
	var open []model.ClinicalAlert
	for _, r := range e.rules {
		if r.Category == model.AlertDischargeReadiness {
			continue
		}
		open = append(open, fire(r, in)...)
	}

	// 2. Discharge readiness
	in.OpenAlerts = open
	all := open
	for _, r := range e.rules {
		if r.Category == model.AlertDischargeReadiness {
			all = append(all, fire(r, in)...)
		}
	}

	// 3. Drop disabled categories and duplicate firings
	seen := make(map[string]bool)
	alerts := make([]model.ClinicalAlert, 0, len(all))
	for _, a := range all {
		if !enabled.Enabled(a.Category) || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		alerts = append(alerts, a)
	}

	SortAlerts(alerts)
	return alerts
}

func fire(r Rule, in *Input) []model.ClinicalAlert {
	var out []model.ClinicalAlert
	for _, t := range r.Evaluate(in) {
		ids := append([]string(nil), t.FactIDs...)
		sort.Strings(ids)

		sev := r.Severity
		if t.Severity != "" {
			sev = t.Severity
		}
		out = append(out, model.ClinicalAlert{
			ID:              model.AlertID(r.ID, ids),
			Severity:        sev,
			Category:        r.Category,
			Title:           r.Title,
			Message:         t.Message,
			Recommendation:  r.Recommendation,
			RuleID:          r.ID,
			RuleName:        r.Name,
			FactIDs:         ids,
			EvidenceSummary: t.Evidence,
		})
	}
	return out
}

// SortAlerts orders alerts by severity, then rule id, then implicated facts.
func SortAlerts(alerts []model.ClinicalAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return strings.Join(a.FactIDs, ",") < strings.Join(b.FactIDs, ",")
	})
}

// Package score combines stage scores into the overall verdict.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Weights of each stage in the overall score. They sum to 1.
var Weights = map[model.Stage]float64{
	model.StageCompleteness:    0.20,
	model.StageAccuracy:        0.20,
	model.StageTemporal:        0.20,
	model.StageContradiction:   0.15,
	model.StageMissingData:     0.15,
	model.StageCrossValidation: 0.10,
}

// Result is the verdict over one evaluation
type Result struct {
	Scores             model.Scores
	Overall            float64
	SafeForClinicalUse bool
	RequiresReview     bool
	Signals            []model.Signal
}

// Scorer calculates the overall score and gating flags
type Scorer struct {
	passThreshold float64
}

// NewScorer creates a new scorer
func NewScorer(passThreshold float64) *Scorer {
	return &Scorer{passThreshold: passThreshold}
}

// Calculate weighs the stage scores and decides whether the report is safe
// for clinical use and whether it needs human review.
func (s *Scorer) Calculate(stages []model.StageResult, alerts []model.ClinicalAlert, conflicts []model.Conflict) Result {
	var signals []model.Signal

	// 1. Weighted overall score
	scores, overall, overallSignal := s.calculateOverall(stages)
	signals = append(signals, overallSignal)

	// 2. Critical alerts
	criticalAlerts, alertSignal := s.countCriticalAlerts(alerts)
	signals = append(signals, alertSignal)

	// 3. High-severity conflicts
	highConflicts, conflictSignal := s.countHighConflicts(conflicts)
	signals = append(signals, conflictSignal)

	// 4. High-severity issues
	highIssues, issueSignal := s.countHighIssues(stages)
	signals = append(signals, issueSignal)

	passes := overall >= s.passThreshold

	return Result{
		Scores:             scores,
		Overall:            overall,
		SafeForClinicalUse: passes && criticalAlerts == 0 && highConflicts == 0,
		RequiresReview:     !passes || highIssues > 0,
		Signals:            signals,
	}
}

// calculateOverall computes the fixed weighted sum of stage scores
func (s *Scorer) calculateOverall(stages []model.StageResult) (model.Scores, float64, model.Signal) {
	var scores model.Scores
	for _, r := range stages {
		scores.Set(r.Stage, r.Score)
	}

	sum := 0.0
	parts := make(map[string]interface{}, len(model.Stages))
	for _, stage := range model.Stages {
		contribution := scores.Get(stage) * Weights[stage]
		sum += contribution
		parts[string(stage)] = round2(contribution)
	}
	overall := round2(sum)

	severity := model.SeverityLow
	description := fmt.Sprintf("Overall score %.2f meets threshold %.0f", overall, s.passThreshold)
	if overall < s.passThreshold {
		severity = model.SeverityHigh
		description = fmt.Sprintf("Overall score %.2f below threshold %.0f", overall, s.passThreshold)
	}

	return scores, overall, model.Signal{
		Type:        model.SignalOverallScore,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"overall":       overall,
			"threshold":     s.passThreshold,
			"contributions": parts,
			"formula":       "0.20*completeness + 0.20*accuracy + 0.20*temporal + 0.15*contradiction + 0.15*missing_data + 0.10*cross_validation",
		},
	}
}

// countCriticalAlerts counts alerts that block clinical use
func (s *Scorer) countCriticalAlerts(alerts []model.ClinicalAlert) (int, model.Signal) {
	var rules []string
	for _, a := range alerts {
		if a.Severity == model.SeverityCritical {
			rules = append(rules, a.RuleID)
		}
	}

	severity := model.SeverityLow
	if len(rules) > 0 {
		severity = model.SeverityCritical
	}
	return len(rules), model.Signal{
		Type:        model.SignalCriticalAlerts,
		Severity:    severity,
		Description: fmt.Sprintf("%d critical alert(s)", len(rules)),
		Data: map[string]interface{}{
			"count": len(rules),
			"rules": rules,
		},
	}
}

// countHighConflicts counts temporal conflicts that block clinical use
func (s *Scorer) countHighConflicts(conflicts []model.Conflict) (int, model.Signal) {
	n := 0
	for _, c := range conflicts {
		if c.Severity.AtLeast(model.SeverityHigh) {
			n++
		}
	}

	severity := model.SeverityLow
	if n > 0 {
		severity = model.SeverityHigh
	}
	return n, model.Signal{
		Type:        model.SignalHighConflicts,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d conflict(s) are high severity", n, len(conflicts)),
		Data:        map[string]interface{}{"count": n, "total": len(conflicts)},
	}
}

// countHighIssues counts validation issues that force human review
func (s *Scorer) countHighIssues(stages []model.StageResult) (int, model.Signal) {
	n, total := 0, 0
	byStage := make(map[string]interface{})
	for _, r := range stages {
		stageCount := 0
		for _, is := range r.Issues {
			total++
			if is.Severity.AtLeast(model.SeverityHigh) {
				stageCount++
			}
		}
		if stageCount > 0 {
			byStage[string(r.Stage)] = stageCount
		}
		n += stageCount
	}

	severity := model.SeverityLow
	if n > 0 {
		severity = model.SeverityMedium
	}
	return n, model.Signal{
		Type:        model.SignalHighIssues,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d issue(s) are high severity or worse", n, total),
		Data: map[string]interface{}{
			"count":    n,
			"total":    total,
			"by_stage": byStage,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

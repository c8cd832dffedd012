package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/neurotrace/internal/model"
)

const (
	sodiumLow          = 135.0
	sodiumCriticalLow  = 125.0
	sodiumMaxChange    = 10.0
	sodiumChangeWindow = 24 * time.Hour
)

// sodiumValues returns sodium labs with a value, oldest first.
func sodiumValues(in *Input) []model.AtomicClinicalFact {
	var labs []model.AtomicClinicalFact
	for _, f := range in.Present(model.CategoryLabValue, ClassSodium) {
		if _, ok := f.Value(); ok && f.InEncounter() {
			labs = append(labs, f)
		}
	}
	return in.Chronological(labs)
}

func hyponatremia(in *Input) []Trigger {
	labs := sodiumValues(in)
	if len(labs) == 0 {
		return nil
	}
	latest := labs[len(labs)-1]
	value, _ := latest.Value()
	if value >= sodiumLow {
		return nil
	}

	sev := model.SeverityHigh
	if value < sodiumCriticalLow {
		sev = model.SeverityCritical
	}
	return []Trigger{{
		FactIDs:  []string{latest.ID},
		Message:  fmt.Sprintf("Latest sodium %.0f mmol/L is below the normal range (135-145).", value),
		Evidence: fmt.Sprintf("Sodium %.0f mmol/L", value),
		Severity: sev,
	}}
}

func rapidSodiumChange(in *Input) []Trigger {
	labs := sodiumValues(in)

	var triggers []Trigger
	for i := 1; i < len(labs); i++ {
		prev, curr := labs[i-1], labs[i]
		elapsed, ok := in.Elapsed(prev, curr)
		if !ok || elapsed < 0 || elapsed > sodiumChangeWindow {
			continue
		}
		pv, _ := prev.Value()
		cv, _ := curr.Value()
		change := cv - pv
		if math.Abs(change) <= sodiumMaxChange {
			continue
		}
		direction := "increased"
		if change < 0 {
			direction = "decreased"
		}
		triggers = append(triggers, Trigger{
			FactIDs:  factIDs([]model.AtomicClinicalFact{prev, curr}),
			Message:  fmt.Sprintf("Sodium %s by %.1f mEq/L in %.1f hours.", direction, math.Abs(change), elapsed.Hours()),
			Evidence: fmt.Sprintf("Sodium %.0f -> %.0f", pv, cv),
		})
	}
	return triggers
}

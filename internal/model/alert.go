package model

import (
	"fmt"
	"strings"
)

// Severity of an alert, issue or conflict
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities; critical is highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// AlertCategory groups clinical rules
type AlertCategory string

const (
	AlertSeizureProphylaxis    AlertCategory = "seizure_prophylaxis"
	AlertDVTProphylaxis        AlertCategory = "dvt_prophylaxis"
	AlertSteroidManagement     AlertCategory = "steroid_management"
	AlertElectrolyteMonitoring AlertCategory = "electrolyte_monitoring"
	AlertHemorrhageRisk        AlertCategory = "hemorrhage_risk"
	AlertDischargeReadiness    AlertCategory = "discharge_readiness"
)

// AlertCategories lists every alert category in catalogue order.
var AlertCategories = []AlertCategory{
	AlertSeizureProphylaxis,
	AlertDVTProphylaxis,
	AlertSteroidManagement,
	AlertElectrolyteMonitoring,
	AlertHemorrhageRisk,
	AlertDischargeReadiness,
}

// ClinicalAlert is a fired rule
type ClinicalAlert struct {
	ID              string        `json:"id"` // Derived from rule id and fact ids
	Severity        Severity      `json:"severity"`
	Category        AlertCategory `json:"category"`
	Title           string        `json:"title"`
	Message         string        `json:"message"`
	Recommendation  string        `json:"recommendation"`
	RuleID          string        `json:"rule_id"`
	RuleName        string        `json:"rule_name"`
	FactIDs         []string      `json:"fact_ids"`
	EvidenceSummary string        `json:"evidence_summary,omitempty"`
}

// AlertID builds the deterministic id of an alert.
func AlertID(ruleID string, factIDs []string) string {
	if len(factIDs) == 0 {
		return ruleID
	}
	return fmt.Sprintf("%s:%s", ruleID, strings.Join(factIDs, ","))
}

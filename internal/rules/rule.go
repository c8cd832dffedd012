// Package rules holds the neurosurgical safety rule catalogue and the engine
// that evaluates it against a fact set.
package rules

import (
	"github.com/ppiankov/neurotrace/internal/model"
)

// Trigger is one firing of a rule
type Trigger struct {
	FactIDs  []string       // Implicated facts, sorted
	Message  string         // What was found
	Evidence string         // Short evidence summary
	Severity model.Severity // Overrides the rule severity when set
}

// Rule is a clinical safety check expressed as data
type Rule struct {
	ID             string
	Name           string
	Category       model.AlertCategory
	Severity       model.Severity
	Title          string
	Recommendation string
	Evaluate       func(*Input) []Trigger
}

// catalogue is the static rule table. It is never modified after init.
var catalogue = []Rule{
	{
		ID: "SEIZURE_001", Name: "Seizure Prophylaxis Indication",
		Category: model.AlertSeizureProphylaxis, Severity: model.SeverityHigh,
		Title:          "Seizure Prophylaxis Not Documented",
		Recommendation: "Consider levetiracetam 500mg BID or phenytoin per protocol",
		Evaluate:       seizureProphylaxisMissing,
	},
	{
		ID: "SEIZURE_002", Name: "Seizure Medication Duration",
		Category: model.AlertSeizureProphylaxis, Severity: model.SeverityMedium,
		Title:          "Seizure Prophylaxis Course Too Short",
		Recommendation: "Standard post-craniotomy prophylaxis runs 7 days; confirm the planned course",
		Evaluate:       seizureCourseTooShort,
	},
	{
		ID: "DVT_001", Name: "DVT Prophylaxis Indication",
		Category: model.AlertDVTProphylaxis, Severity: model.SeverityHigh,
		Title:          "DVT Prophylaxis Not Documented",
		Recommendation: "Consider enoxaparin 40mg SQ daily or SCDs if pharmacologic prophylaxis is contraindicated",
		Evaluate:       dvtProphylaxisMissing,
	},
	{
		ID: "DVT_002", Name: "DVT Pharmacologic Timing",
		Category: model.AlertDVTProphylaxis, Severity: model.SeverityMedium,
		Title:          "Pharmacologic DVT Prophylaxis Outside 24-48h Window",
		Recommendation: "Start chemoprophylaxis 24-48h after surgery once a stable post-operative scan is documented",
		Evaluate:       dvtTimingOutsideWindow,
	},
	{
		ID: "DVT_003", Name: "DVT Prophylaxis Contraindications",
		Category: model.AlertDVTProphylaxis, Severity: model.SeverityCritical,
		Title:          "DVT Prophylaxis With Active Hemorrhage",
		Recommendation: "Hold pharmacologic prophylaxis and use mechanical prophylaxis until hemorrhage is stable",
		Evaluate:       dvtWithActiveHemorrhage,
	},
	{
		ID: "STEROID_001", Name: "Steroid Taper Protocol",
		Category: model.AlertSteroidManagement, Severity: model.SeverityMedium,
		Title:          "Steroid Taper Not Documented",
		Recommendation: "Implement a taper protocol (e.g. decrease dexamethasone by 2mg every 3 days)",
		Evaluate:       steroidWithoutTaper,
	},
	{
		ID: "STEROID_002", Name: "Steroid Gastric Protection",
		Category: model.AlertSteroidManagement, Severity: model.SeverityMedium,
		Title:          "Gastric Protection Not Documented",
		Recommendation: "Consider pantoprazole 40mg daily or famotidine 20mg BID",
		Evaluate:       steroidWithoutGIProtection,
	},
	{
		ID: "SODIUM_001", Name: "Hyponatremia Monitoring",
		Category: model.AlertElectrolyteMonitoring, Severity: model.SeverityHigh,
		Title:          "Hyponatremia Detected",
		Recommendation: "Evaluate for SIADH vs cerebral salt wasting; consider fluid restriction or hypertonic saline based on etiology",
		Evaluate:       hyponatremia,
	},
	{
		ID: "SODIUM_002", Name: "Rapid Sodium Correction",
		Category: model.AlertElectrolyteMonitoring, Severity: model.SeverityCritical,
		Title:          "Rapid Sodium Change Detected",
		Recommendation: "Risk of osmotic demyelination; keep correction below 8-10 mEq/L per 24h",
		Evaluate:       rapidSodiumChange,
	},
	{
		ID: "HEMORRHAGE_001", Name: "Anticoagulation Reversal",
		Category: model.AlertHemorrhageRisk, Severity: model.SeverityHigh,
		Title:          "Anticoagulation Reversal Not Documented",
		Recommendation: "Verify anticoagulation was reversed and coagulation labs normalised before surgery",
		Evaluate:       antithromboticNotReversed,
	},
	{
		ID: "HEMORRHAGE_002", Name: "Hemorrhage Risk Factors",
		Category: model.AlertHemorrhageRisk, Severity: model.SeverityMedium,
		Title:          "Hemorrhage Without Documented Risk Assessment",
		Recommendation: "Document blood pressure control, coagulation studies and antithrombotic history",
		Evaluate:       hemorrhageWithoutRiskFactors,
	},
	{
		ID: "DISCHARGE_001", Name: "Discharge Safety Criteria",
		Category: model.AlertDischargeReadiness, Severity: model.SeverityHigh,
		Title:          "Discharge Criteria Not Met",
		Recommendation: "Document a stable neurological exam and resolve open high-severity alerts before discharge",
		Evaluate:       dischargeUnsafe,
	},
	{
		ID: "DISCHARGE_002", Name: "Discharge Follow-Up",
		Category: model.AlertDischargeReadiness, Severity: model.SeverityMedium,
		Title:          "Follow-Up Appointment Not Documented",
		Recommendation: "Schedule neurosurgery follow-up within 2 weeks of discharge",
		Evaluate:       dischargeWithoutFollowUp,
	},
}

// Catalogue returns a copy of the rule table in evaluation order.
func Catalogue() []Rule {
	out := make([]Rule, len(catalogue))
	copy(out, catalogue)
	return out
}

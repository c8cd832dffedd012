package model

// Stage names a validation stage
type Stage string

const (
	StageCompleteness    Stage = "completeness"
	StageAccuracy        Stage = "accuracy"
	StageTemporal        Stage = "temporal_coherence"
	StageContradiction   Stage = "contradiction"
	StageMissingData     Stage = "missing_data"
	StageCrossValidation Stage = "cross_validation"
)

// Stages lists the validation stages in execution order.
var Stages = []Stage{
	StageCompleteness,
	StageAccuracy,
	StageTemporal,
	StageContradiction,
	StageMissingData,
	StageCrossValidation,
}

// ValidationIssue is one finding from a validation stage
type ValidationIssue struct {
	Stage       Stage    `json:"stage"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	FactIDs     []string `json:"fact_ids,omitempty"`
	Field       string   `json:"field,omitempty"` // Detail field, for missing-data issues
}

// StageResult is the outcome of one stage with its transparent scoring data
type StageResult struct {
	Stage  Stage                  `json:"stage"`
	Score  float64                `json:"score"`          // 0-100
	Issues []ValidationIssue      `json:"issues"`         // Findings, in stage order
	Data   map[string]interface{} `json:"data,omitempty"` // Formula inputs
}

// Scores holds the six stage sub-scores
type Scores struct {
	Completeness    float64 `json:"completeness"`
	Accuracy        float64 `json:"accuracy"`
	Temporal        float64 `json:"temporal_coherence"`
	Contradiction   float64 `json:"contradiction"`
	MissingData     float64 `json:"missing_data"`
	CrossValidation float64 `json:"cross_validation"`
}

// Get returns the sub-score of a stage.
func (s Scores) Get(stage Stage) float64 {
	switch stage {
	case StageCompleteness:
		return s.Completeness
	case StageAccuracy:
		return s.Accuracy
	case StageTemporal:
		return s.Temporal
	case StageContradiction:
		return s.Contradiction
	case StageMissingData:
		return s.MissingData
	case StageCrossValidation:
		return s.CrossValidation
	}
	return 0
}

// Set assigns the sub-score of a stage.
func (s *Scores) Set(stage Stage, v float64) {
	switch stage {
	case StageCompleteness:
		s.Completeness = v
	case StageAccuracy:
		s.Accuracy = v
	case StageTemporal:
		s.Temporal = v
	case StageContradiction:
		s.Contradiction = v
	case StageMissingData:
		s.MissingData = v
	case StageCrossValidation:
		s.CrossValidation = v
	}
}

// Signal records one input to the overall verdict with its transparent data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula inputs
}

// SignalType classifies a verdict signal
type SignalType string

const (
	SignalOverallScore   SignalType = "overall_score"   // Weighted sum of stage scores
	SignalCriticalAlerts SignalType = "critical_alerts" // Blocks clinical use
	SignalHighConflicts  SignalType = "high_conflicts"  // Blocks clinical use
	SignalHighIssues     SignalType = "high_issues"     // Forces review
)

// MissingFields names the required detail fields one fact lacks.
type MissingFields struct {
	FactID   string         `json:"fact_id"`
	Category EntityCategory `json:"category"`
	Name     string         `json:"name"`
	Fields   []string       `json:"fields"`
}

// ValidationReport is the immutable result of one evaluation of a fact-set snapshot.
// It carries no wall-clock data so that re-running the same snapshot yields
// byte-identical output.
type ValidationReport struct {
	ReportID       string `json:"report_id"`       // UUIDv5 of SnapshotDigest
	SnapshotDigest string `json:"snapshot_digest"` // sha256 of the canonical input
	PatientID      string `json:"patient_id,omitempty"`

	Scores  Scores        `json:"scores"`
	Overall float64       `json:"overall_score"`
	Stages  []StageResult `json:"stages"` // Fixed stage order

	Issues             []ValidationIssue `json:"issues"`
	SafeForClinicalUse bool              `json:"safe_for_clinical_use"`
	RequiresReview     bool              `json:"requires_review"`
	Signals            []Signal          `json:"signals"` // Why the flags are set

	MissingRequiredFields     []MissingFields  `json:"missing_required_fields"`     // Facts lacking required details
	MissingExpectedCategories []EntityCategory `json:"missing_expected_categories"` // Usual categories not documented

	Conflicts       []Conflict      `json:"conflicts"`
	Alerts          []ClinicalAlert `json:"alerts"`
	Timeline        Timeline        `json:"timeline"`
	TimelineSummary TimelineSummary `json:"timeline_summary"`
}

// CountAlerts counts alerts at or above a severity.
func (r ValidationReport) CountAlerts(min Severity) int {
	n := 0
	for _, a := range r.Alerts {
		if a.Severity.AtLeast(min) {
			n++
		}
	}
	return n
}

// CountIssues counts issues at or above a severity.
func (r ValidationReport) CountIssues(min Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity.AtLeast(min) {
			n++
		}
	}
	return n
}

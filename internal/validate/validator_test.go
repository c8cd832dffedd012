package validate

import (
	"context"
	"testing"

	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) *model.TemporalContext {
	t, err := model.ParseClinicalTime(s)
	if err != nil {
		panic(err)
	}
	return &model.TemporalContext{Date: t}
}

func fact(id string, cat model.EntityCategory, name string) model.AtomicClinicalFact {
	return model.AtomicClinicalFact{ID: id, Category: cat, Name: name, Confidence: 0.95}
}

func lab(id, name string, value float64, unit string, tc *model.TemporalContext) model.AtomicClinicalFact {
	f := fact(id, model.CategoryLabValue, name)
	f.Detail = model.LabDetail{Value: model.FloatPtr(value), Unit: unit}
	f.Temporal = tc
	return f
}

func med(id, name string, dose float64, unit string) model.AtomicClinicalFact {
	f := fact(id, model.CategoryMedication, name)
	f.Detail = model.MedicationDetail{DoseValue: model.FloatPtr(dose), DoseUnit: unit, Frequency: "daily"}
	return f
}

func input(t *testing.T, facts ...model.AtomicClinicalFact) Input {
	t.Helper()
	return inputWith(t, model.PatientContext{}, facts...)
}

func inputWith(t *testing.T, pctx model.PatientContext, facts ...model.AtomicClinicalFact) Input {
	t.Helper()
	cfg := model.DefaultConfig()
	tl, err := temporal.NewResolver().Resolve(facts, pctx)
	require.NoError(t, err)
	return Input{
		Facts:     facts,
		Timeline:  tl,
		Conflicts: temporal.NewDetector(cfg.Temporal).Detect(tl.Events, tl.Anchor),
	}
}

func newValidator() *Validator {
	return NewValidator(model.DefaultConfig().Validation, 0)
}

func severities(issues []model.ValidationIssue) []model.Severity {
	out := make([]model.Severity, len(issues))
	for i, is := range issues {
		out[i] = is.Severity
	}
	return out
}

func TestValidateEmptyFactSet(t *testing.T) {
	results, err := newValidator().Validate(context.Background(), input(t))
	require.NoError(t, err)
	require.Len(t, results, len(model.Stages))

	for i, r := range results {
		assert.Equal(t, model.Stages[i], r.Stage)
		if r.Stage == model.StageCompleteness {
			assert.Equal(t, 0.0, r.Score)
			assert.Equal(t, []model.Severity{model.SeverityHigh, model.SeverityHigh, model.SeverityHigh}, severities(r.Issues))
			continue
		}
		assert.Equal(t, 100.0, r.Score, r.Stage)
		assert.Empty(t, r.Issues, r.Stage)
	}
}

func TestValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newValidator().Validate(ctx, input(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestNewValidatorDefaultWorkers(t *testing.T) {
	assert.Equal(t, len(model.Stages), NewValidator(model.ValidationConfig{}, 0).maxWorkers)
	assert.Equal(t, 2, NewValidator(model.ValidationConfig{}, 2).maxWorkers)
}

func TestCompleteness(t *testing.T) {
	tests := []struct {
		name   string
		facts  []model.AtomicClinicalFact
		score  float64
		issues []model.Severity
	}{
		{
			name:   "procedure only",
			facts:  []model.AtomicClinicalFact{fact("p", model.CategoryProcedure, "craniotomy")},
			score:  33.33,
			issues: []model.Severity{model.SeverityHigh, model.SeverityHigh, model.SeverityLow, model.SeverityLow, model.SeverityLow},
		},
		{
			name: "discharge requires an exam",
			facts: []model.AtomicClinicalFact{
				fact("d", model.CategoryDiagnosis, "meningioma"),
				fact("p", model.CategoryProcedure, "craniotomy"),
				med("m", "levetiracetam", 500, "mg"),
				fact("dc", model.CategoryDischarge, "discharge home"),
				fact("ct", model.CategoryImagingFinding, "postoperative CT"),
				lab("na", "sodium", 140, "mmol/L", nil),
			},
			score:  75,
			issues: []model.Severity{model.SeverityMedium},
		},
		{
			name: "negated diagnosis does not count",
			facts: func() []model.AtomicClinicalFact {
				dx := fact("d", model.CategoryDiagnosis, "hydrocephalus")
				dx.Negated = true
				return []model.AtomicClinicalFact{
					dx,
					fact("p", model.CategoryProcedure, "craniotomy"),
					med("m", "dexamethasone", 4, "mg"),
					fact("e", model.CategoryPhysicalExam, "neuro exam"),
					fact("ct", model.CategoryImagingFinding, "CT head"),
					lab("na", "sodium", 140, "mmol/L", nil),
				}
			}(),
			score:  66.67,
			issues: []model.Severity{model.SeverityHigh},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newValidator().completeness(input(t, tt.facts...))
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.issues, severities(r.Issues))
		})
	}
}

func TestAccuracy(t *testing.T) {
	high := fact("a", model.CategoryDiagnosis, "glioma")
	borderline := fact("b", model.CategoryDiagnosis, "edema")
	borderline.Confidence = 0.6
	poor := fact("c", model.CategorySymptom, "headache")
	poor.Confidence = 0.2

	r := newValidator().accuracy(input(t, poor, high, borderline))

	assert.Equal(t, 33.33, r.Score)
	require.Len(t, r.Issues, 2)
	assert.Equal(t, []string{"b"}, r.Issues[0].FactIDs)
	assert.Equal(t, model.SeverityMedium, r.Issues[0].Severity)
	assert.Equal(t, []string{"c"}, r.Issues[1].FactIDs)
	assert.Equal(t, model.SeverityHigh, r.Issues[1].Severity)
}

func TestTemporalCoherence(t *testing.T) {
	conflict := func(sev model.Severity) model.Conflict {
		return model.Conflict{Kind: model.ConflictImpossibleSequence, Severity: sev, FactIDs: []string{"x"}}
	}

	tests := []struct {
		name      string
		conflicts []model.Conflict
		score     float64
	}{
		{"none", nil, 100},
		{"one high one medium", []model.Conflict{conflict(model.SeverityHigh), conflict(model.SeverityMedium)}, 78},
		{"one low", []model.Conflict{conflict(model.SeverityLow)}, 97},
		{"capped", []model.Conflict{
			conflict(model.SeverityHigh), conflict(model.SeverityHigh), conflict(model.SeverityHigh),
			conflict(model.SeverityHigh), conflict(model.SeverityHigh), conflict(model.SeverityHigh),
			conflict(model.SeverityHigh),
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newValidator().temporalCoherence(Input{Conflicts: tt.conflicts})
			assert.Equal(t, tt.score, r.Score)
			assert.Len(t, r.Issues, len(tt.conflicts))
		})
	}

	// more severe conflicts never raise the score
	prev := 101.0
	for _, sev := range []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh} {
		r := newValidator().temporalCoherence(Input{Conflicts: []model.Conflict{conflict(sev)}})
		assert.Less(t, r.Score, prev)
		prev = r.Score
	}
}

func TestTemporalCoherenceResolutionRate(t *testing.T) {
	in := input(t,
		fact("a", model.CategoryDiagnosis, "glioma"),
		fact("b", model.CategorySymptom, "headache"),
	)
	r := newValidator().temporalCoherence(in)

	assert.Equal(t, 100.0, r.Score)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, model.SeverityLow, r.Issues[0].Severity)
}

func TestContradiction(t *testing.T) {
	left := fact("l", model.CategoryImagingFinding, "subdural hematoma")
	left.Anatomy = model.Anatomy{Laterality: model.LateralityLeft, BrainRegion: "frontal"}
	right := fact("r", model.CategoryImagingFinding, "subdural hematoma")
	right.Anatomy = model.Anatomy{Laterality: model.LateralityRight, BrainRegion: "frontal"}
	otherSite := fact("o", model.CategoryImagingFinding, "subdural hematoma")
	otherSite.Anatomy = model.Anatomy{Laterality: model.LateralityRight, BrainRegion: "occipital"}

	affirmed := fact("s1", model.CategorySymptom, "seizure")
	affirmed.Temporal = at("2024-03-02T10:00:00Z")
	denied := fact("s2", model.CategorySymptom, "seizure")
	denied.Temporal = at("2024-03-02T10:00:00Z")
	denied.Negated = true

	tests := []struct {
		name   string
		facts  []model.AtomicClinicalFact
		score  float64
		issues int
	}{
		{"opposite laterality", []model.AtomicClinicalFact{left, right}, 90, 1},
		{"different structures", []model.AtomicClinicalFact{left, otherSite}, 100, 0},
		{"conflicting values at one time", []model.AtomicClinicalFact{
			lab("a", "sodium", 140, "mmol/L", at("2024-03-02T06:00:00Z")),
			lab("b", "Na", 128, "mmol/L", at("2024-03-02T06:00:00Z")),
		}, 90, 1},
		{"values within tolerance", []model.AtomicClinicalFact{
			lab("a", "sodium", 140, "mmol/L", at("2024-03-02T06:00:00Z")),
			lab("b", "sodium", 141, "mmol/L", at("2024-03-02T06:00:00Z")),
		}, 100, 0},
		{"affirmed and negated", []model.AtomicClinicalFact{affirmed, denied}, 90, 1},
		{"implausible jump", []model.AtomicClinicalFact{
			lab("a", "sodium", 120, "mmol/L", at("2024-03-02T06:00:00Z")),
			lab("b", "sodium", 155, "mmol/L", at("2024-03-02T18:00:00Z")),
		}, 90, 1},
		{"jump spread over days", []model.AtomicClinicalFact{
			lab("a", "sodium", 120, "mmol/L", at("2024-03-02T06:00:00Z")),
			lab("b", "sodium", 155, "mmol/L", at("2024-03-05T06:00:00Z")),
		}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newValidator().contradiction(input(t, tt.facts...))
			assert.Equal(t, tt.score, r.Score)
			assert.Len(t, r.Issues, tt.issues)
		})
	}
}

func TestContradictionAtResolvedTime(t *testing.T) {
	vital := func(id string, value float64, tc *model.TemporalContext) model.AtomicClinicalFact {
		f := fact(id, model.CategoryVitalSign, "heart rate")
		f.Detail = model.VitalDetail{Value: model.FloatPtr(value), Unit: "bpm"}
		f.Temporal = tc
		return f
	}
	pod := func(n int) *model.TemporalContext { return &model.TemporalContext{POD: model.IntPtr(n)} }
	anchored := model.PatientContext{SurgeryDate: at("2024-03-05").Date}

	affirmed := fact("s1", model.CategorySymptom, "seizure")
	affirmed.Temporal = pod(1)
	denied := fact("s2", model.CategorySymptom, "seizure")
	denied.Temporal = pod(1)
	denied.Negated = true

	tests := []struct {
		name   string
		pctx   model.PatientContext
		facts  []model.AtomicClinicalFact
		issues int
	}{
		{"same POD with anchor", anchored, []model.AtomicClinicalFact{
			vital("hr1", 60, pod(1)), vital("hr2", 140, pod(1)),
		}, 1},
		{"same POD without anchor", model.PatientContext{}, []model.AtomicClinicalFact{
			vital("hr1", 60, pod(1)), vital("hr2", 140, pod(1)),
		}, 1},
		{"POD matching an absolute date", anchored, []model.AtomicClinicalFact{
			vital("hr1", 60, pod(1)), vital("hr2", 140, at("2024-03-06")),
		}, 1},
		{"same instant in two zones", model.PatientContext{}, []model.AtomicClinicalFact{
			lab("a", "sodium", 140, "mmol/L", at("2024-03-02T06:00:00Z")),
			lab("b", "sodium", 128, "mmol/L", at("2024-03-02T01:00:00-05:00")),
		}, 1},
		{"different PODs", anchored, []model.AtomicClinicalFact{
			vital("hr1", 60, pod(1)), vital("hr2", 140, pod(2)),
		}, 0},
		{"affirmed and negated on one POD", anchored, []model.AtomicClinicalFact{affirmed, denied}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newValidator().contradiction(inputWith(t, tt.pctx, tt.facts...))
			assert.Len(t, r.Issues, tt.issues)
		})
	}
}

func TestMissingData(t *testing.T) {
	incomplete := fact("m2", model.CategoryMedication, "dexamethasone")
	incomplete.Detail = model.MedicationDetail{DoseValue: model.FloatPtr(4)}
	negated := fact("m3", model.CategoryMedication, "heparin")
	negated.Negated = true
	undated := fact("p", model.CategoryProcedure, "craniotomy")

	r := newValidator().missingData(input(t,
		med("m1", "levetiracetam", 500, "mg"),
		incomplete,
		negated,
		undated,
		fact("d", model.CategoryDiagnosis, "glioma"),
	))

	assert.Equal(t, 33.33, r.Score)
	require.Len(t, r.Issues, 2)
	assert.Equal(t, "dose_unit,frequency", r.Issues[0].Field)
	assert.Equal(t, []string{"m2"}, r.Issues[0].FactIDs)
	assert.Equal(t, "temporal", r.Issues[1].Field)
}

func TestCrossValidation(t *testing.T) {
	tests := []struct {
		name   string
		facts  []model.AtomicClinicalFact
		score  float64
		issues []model.Severity
	}{
		{
			name:   "two sodium values, one low",
			facts:  []model.AtomicClinicalFact{lab("na1", "sodium", 140, "mmol/L", nil), lab("na2", "sodium", 128, "mEq/L", nil)},
			score:  50,
			issues: []model.Severity{model.SeverityMedium},
		},
		{
			name:   "implausible sodium",
			facts:  []model.AtomicClinicalFact{lab("na", "sodium", 95, "mmol/L", nil)},
			score:  0,
			issues: []model.Severity{model.SeverityHigh},
		},
		{
			name:  "unit mismatch is not checked",
			facts: []model.AtomicClinicalFact{lab("g", "glucose", 5.5, "mmol/L", nil)},
			score: 100,
		},
		{
			name:  "unknown analyte",
			facts: []model.AtomicClinicalFact{lab("x", "lactate", 2, "mmol/L", nil)},
			score: 100,
		},
		{
			name: "doses",
			facts: []model.AtomicClinicalFact{
				med("a", "dexamethasone", 4, "mg"),
				med("b", "levetiracetam", 1, "g"),
				med("c", "dexamethasone", 30, "mg"),
				med("d", "enoxaparin", 400, "mg"),
			},
			score:  50,
			issues: []model.Severity{model.SeverityMedium, model.SeverityHigh},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newValidator().crossValidation(input(t, tt.facts...))
			assert.Equal(t, tt.score, r.Score)
			if len(tt.issues) == 0 {
				assert.Empty(t, r.Issues)
				return
			}
			assert.Equal(t, tt.issues, severities(r.Issues))
		})
	}
}

func TestRangeTable(t *testing.T) {
	ranges := DefaultRanges()

	na, ok := ranges.Lab(" Na ")
	require.True(t, ok)
	assert.Equal(t, [2]float64{100, 180}, na.Plausible)

	dose, ok := ranges.Dose("Dexamethasone sodium phosphate")
	require.True(t, ok)
	assert.Equal(t, 24.0, dose.MaxMG)

	_, ok = ranges.Dose("unobtainium")
	assert.False(t, ok)

	_, err := ParseRangeTable([]byte("labs:\n  - names: [x]\n    reference: [10, 1]\n    plausible: [0, 20]\n"))
	assert.Error(t, err)

	_, err = ParseRangeTable([]byte("labs: ["))
	assert.Error(t, err)
}

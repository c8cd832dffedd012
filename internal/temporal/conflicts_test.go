package temporal

import (
	"testing"

	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, facts []model.AtomicClinicalFact, ctx model.PatientContext, cfg model.TemporalConfig) []model.Conflict {
	t.Helper()
	tl, err := NewResolver().Resolve(facts, ctx)
	require.NoError(t, err)
	return NewDetector(cfg).Detect(tl.Events, tl.Anchor)
}

func kinds(conflicts []model.Conflict) []model.ConflictKind {
	out := make([]model.ConflictKind, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Kind
	}
	return out
}

func TestProcedureBeforeAdmission(t *testing.T) {
	facts := []model.AtomicClinicalFact{
		fact("proc", model.CategoryProcedure, "craniotomy", &model.TemporalContext{Date: date("2024-03-01")}),
		fact("adm", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-03")}),
	}

	conflicts := detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, model.ConflictImpossibleSequence, c.Kind)
	assert.Equal(t, model.SeverityHigh, c.Severity)
	assert.Equal(t, []string{"proc", "adm"}, c.FactIDs)
	assert.Contains(t, c.Explanation, "procedure dated before admission")
}

func TestSequenceSameDayIsFine(t *testing.T) {
	facts := []model.AtomicClinicalFact{
		fact("proc", model.CategoryProcedure, "craniotomy", &model.TemporalContext{Date: date("2024-03-01 07:00")}),
		fact("adm", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-01 09:00")}),
	}
	assert.Empty(t, detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal))
}

func TestSequenceExemptions(t *testing.T) {
	past := model.AtomicClinicalFact{ID: "old", Category: model.CategoryProcedure, Name: "VP shunt", Confidence: 1,
		Historical: true, Temporal: &model.TemporalContext{Date: date("2019-06-01")}}
	facts := []model.AtomicClinicalFact{
		past,
		fact("adm", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-01")}),
		fact("dc", model.CategoryDischarge, "discharge", &model.TemporalContext{Date: date("2024-03-08")}),
	}
	assert.Empty(t, detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal))
}

func TestDischargeBeforeClinicalEvent(t *testing.T) {
	facts := []model.AtomicClinicalFact{
		fact("adm", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-01")}),
		fact("dc", model.CategoryDischarge, "discharge", &model.TemporalContext{Date: date("2024-03-05")}),
		fact("lab", model.CategoryLabValue, "sodium", &model.TemporalContext{Date: date("2024-03-07")}),
	}
	conflicts := detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"dc", "lab"}, conflicts[0].FactIDs)
}

func TestPODMismatch(t *testing.T) {
	ctx := model.PatientContext{SurgeryDate: date("2024-03-01")}
	facts := []model.AtomicClinicalFact{
		fact("ok", model.CategoryLabValue, "sodium", &model.TemporalContext{Date: date("2024-03-03"), POD: model.IntPtr(2)}),
		fact("off", model.CategoryLabValue, "sodium", &model.TemporalContext{Date: date("2024-03-06"), POD: model.IntPtr(2)}),
	}

	strict := model.DefaultConfig().Temporal
	conflicts := detect(t, facts, ctx, strict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictPODMismatch, conflicts[0].Kind)
	assert.Equal(t, model.SeverityMedium, conflicts[0].Severity)
	assert.Equal(t, []string{"off"}, conflicts[0].FactIDs)

	lenient := strict
	lenient.ToleranceDays = 3
	assert.Empty(t, detect(t, facts, ctx, lenient))
}

func TestPODUsesChartedCalendarDay(t *testing.T) {
	ctx := model.PatientContext{SurgeryDate: date("2024-03-05")}

	tests := []struct {
		name     string
		at       string
		pod      int
		conflict bool
	}{
		{"evening west of UTC on surgery day", "2024-03-05T21:30:00-05:00", 0, false},
		{"early morning east of UTC", "2024-03-06T00:30:00+01:00", 1, false},
		{"local day after surgery stated as POD 0", "2024-03-06T08:00:00-05:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := []model.AtomicClinicalFact{
				fact("lab", model.CategoryLabValue, "sodium", &model.TemporalContext{Date: date(tt.at), POD: model.IntPtr(tt.pod)}),
			}
			tl, err := NewResolver().Resolve(facts, ctx)
			require.NoError(t, err)
			conflicts := NewDetector(model.DefaultConfig().Temporal).Detect(tl.Events, tl.Anchor)
			if tt.conflict {
				assert.Equal(t, []model.ConflictKind{model.ConflictPODMismatch}, kinds(conflicts))
				return
			}
			assert.Empty(t, conflicts)
			require.NotNil(t, tl.Events[0].ResolvedPOD)
			assert.Equal(t, tt.pod, *tl.Events[0].ResolvedPOD)
		})
	}
}

func TestDurationViolations(t *testing.T) {
	backwards := model.AtomicClinicalFact{
		ID: "med", Category: model.CategoryMedication, Name: "dexamethasone", Confidence: 1,
		Temporal: &model.TemporalContext{Date: date("2024-03-02")},
		Detail:   model.MedicationDetail{StartDate: date("2024-03-10"), EndDate: date("2024-03-02")},
	}
	endless := model.AtomicClinicalFact{
		ID: "med2", Category: model.CategoryMedication, Name: "levetiracetam", Confidence: 1,
		Temporal: &model.TemporalContext{Date: date("2024-03-02")},
		Detail:   model.MedicationDetail{DurationDays: model.IntPtr(900)},
	}
	facts := []model.AtomicClinicalFact{
		fact("adm", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-01")}),
		backwards,
		endless,
		fact("p1", model.CategoryProcedure, "craniotomy", &model.TemporalContext{Date: date("2024-03-01 08:00")}),
		fact("p2", model.CategoryProcedure, "EVD placement", &model.TemporalContext{Date: date("2024-03-01 08:10")}),
	}

	conflicts := detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal)
	assert.Equal(t, []model.ConflictKind{
		model.ConflictDurationViolation,
		model.ConflictDurationViolation,
		model.ConflictDurationViolation,
	}, kinds(conflicts))

	var got [][]string
	for _, c := range conflicts {
		got = append(got, c.FactIDs)
	}
	assert.Equal(t, [][]string{{"med"}, {"med2"}, {"p1", "p2"}}, got)
}

func TestMaxPODViolation(t *testing.T) {
	facts := []model.AtomicClinicalFact{
		fact("proc", model.CategoryProcedure, "craniotomy", &model.TemporalContext{Date: date("2024-03-01"), POD: model.IntPtr(0)}),
		fact("lab", model.CategoryLabValue, "sodium", &model.TemporalContext{POD: model.IntPtr(400)}),
	}
	conflicts := detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictMaxPODViolation, conflicts[0].Kind)
	assert.Equal(t, model.SeverityHigh, conflicts[0].Severity)
}

func TestDetectIsDeterministic(t *testing.T) {
	facts := []model.AtomicClinicalFact{
		fact("p", model.CategoryProcedure, "craniotomy", &model.TemporalContext{Date: date("2024-03-01")}),
		fact("a2", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-04")}),
		fact("a1", model.CategoryAdmission, "admission", &model.TemporalContext{Date: date("2024-03-03")}),
		fact("lab", model.CategoryLabValue, "sodium", &model.TemporalContext{POD: model.IntPtr(500)}),
	}
	first := detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, detect(t, facts, model.PatientContext{}, model.DefaultConfig().Temporal))
	}
	assert.Equal(t, []model.ConflictKind{
		model.ConflictImpossibleSequence,
		model.ConflictImpossibleSequence,
		model.ConflictMaxPODViolation,
	}, kinds(first))
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/worker"
)

func report(id string, safe, review bool, alerts ...model.ClinicalAlert) *model.ValidationReport {
	return &model.ValidationReport{
		PatientID:          id,
		Overall:            72.5,
		SafeForClinicalUse: safe,
		RequiresReview:     review,
		Alerts:             alerts,
		Conflicts: []model.Conflict{
			{Kind: model.ConflictImpossibleSequence, Severity: model.SeverityHigh},
		},
	}
}

func TestRecorderObserve(t *testing.T) {
	r := NewRecorder()
	critical := model.ClinicalAlert{Severity: model.SeverityCritical, Category: model.AlertElectrolyteMonitoring}

	r.Observe(&worker.BundleResult{Path: "a.json", Report: report("a", true, false), Duration: 10 * time.Millisecond})
	r.Observe(&worker.BundleResult{Path: "b.json", Report: report("b", false, true, critical), Duration: 20 * time.Millisecond})
	r.Observe(&worker.BundleResult{Path: "c.json", Report: report("c", true, true)})
	r.Observe(&worker.BundleResult{Path: "d.json", Error: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues(OutcomeSafe)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues(OutcomeUnsafe)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues(OutcomeReview)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluations.WithLabelValues(OutcomeError)))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("critical", "electrolyte_monitoring")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.conflicts.WithLabelValues("impossible_sequence")))
	assert.Equal(t, 72.5, testutil.ToFloat64(r.score.WithLabelValues("b")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.score))
}

func TestRecorderWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordReport(report("p1", true, false))

	path := filepath.Join(t.TempDir(), "neurotrace.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `neurotrace_evaluations_total{outcome="safe"} 1`)
	assert.Contains(t, out, `neurotrace_overall_score{patient_id="p1"} 72.5`)
}

// Package metrics records batch evaluation outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/worker"
)

// Outcome labels of the evaluations counter
const (
	OutcomeSafe   = "safe"
	OutcomeReview = "review"
	OutcomeUnsafe = "unsafe"
	OutcomeError  = "error"
)

// Recorder collects evaluation metrics on its own registry so that runs
// never share state through the global default registry.
type Recorder struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	duration    prometheus.Histogram
	score       *prometheus.GaugeVec
}

// NewRecorder creates a recorder with all metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neurotrace",
		Name:      "evaluations_total",
		Help:      "Evaluated bundles by outcome",
	}, []string{"outcome"})
	r.alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neurotrace",
		Name:      "alerts_total",
		Help:      "Clinical alerts raised by severity and category",
	}, []string{"severity", "category"})
	r.conflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neurotrace",
		Name:      "conflicts_total",
		Help:      "Temporal conflicts detected by kind",
	}, []string{"kind"})
	r.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "neurotrace",
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent loading and evaluating one bundle",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})
	r.score = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "neurotrace",
		Name:      "overall_score",
		Help:      "Overall validation score of the latest report per patient",
	}, []string{"patient_id"})

	r.registry.MustRegister(r.evaluations, r.alerts, r.conflicts, r.duration, r.score)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one finished bundle. It implements worker.Observer.
func (r *Recorder) Observe(res *worker.BundleResult) {
	r.duration.Observe(res.Duration.Seconds())

	if res.Error != nil || res.Report == nil {
		r.evaluations.WithLabelValues(OutcomeError).Inc()
		return
	}
	r.RecordReport(res.Report)
}

// RecordReport records the outcome, alerts, conflicts and score of a report.
func (r *Recorder) RecordReport(report *model.ValidationReport) {
	r.evaluations.WithLabelValues(outcome(report)).Inc()

	for _, a := range report.Alerts {
		r.alerts.WithLabelValues(string(a.Severity), string(a.Category)).Inc()
	}
	for _, c := range report.Conflicts {
		r.conflicts.WithLabelValues(string(c.Kind)).Inc()
	}
	if report.PatientID != "" {
		r.score.WithLabelValues(report.PatientID).Set(report.Overall)
	}
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}
	return nil
}

func outcome(report *model.ValidationReport) string {
	switch {
	case !report.SafeForClinicalUse:
		return OutcomeUnsafe
	case report.RequiresReview:
		return OutcomeReview
	default:
		return OutcomeSafe
	}
}

// Package pipeline exposes the evaluation operations over a patient fact set.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/logger"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/rules"
	"github.com/ppiankov/neurotrace/internal/score"
	"github.com/ppiankov/neurotrace/internal/temporal"
	"github.com/ppiankov/neurotrace/internal/validate"
)

// ReportNamespace is the UUID namespace of report ids.
var ReportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/neurotrace/report"))

// Engine orchestrates timeline resolution, conflict detection, rule evaluation
// and validation. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	config    model.Config
	resolver  *temporal.Resolver
	detector  *temporal.Detector
	rules     *rules.Engine
	validator *validate.Validator
	scorer    *score.Scorer
	logger    *zap.SugaredLogger
}

// NewEngine creates an engine with the given configuration. An invalid
// configuration is rejected before anything is evaluated.
func NewEngine(cfg model.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		config:    cfg,
		resolver:  temporal.NewResolver(),
		detector:  temporal.NewDetector(cfg.Temporal),
		rules:     rules.NewEngine(),
		validator: validate.NewValidator(cfg.Validation, len(model.Stages)),
		scorer:    score.NewScorer(cfg.Validation.PassThreshold),
		logger:    logger.ComponentLogger("pipeline"),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() model.Config {
	return e.config
}

// ResolveTimeline places every fact on the patient timeline.
func (e *Engine) ResolveTimeline(facts []model.AtomicClinicalFact, pctx model.PatientContext) (model.Timeline, error) {
	return e.resolver.Resolve(facts, pctx)
}

// DetectConflicts finds temporal inconsistencies on a resolved timeline.
func (e *Engine) DetectConflicts(events []model.TemporalEvent, anchor *model.AnchorDate) []model.Conflict {
	conflicts := e.detector.Detect(events, anchor)
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}
	return conflicts
}

// EvaluateRules runs the enabled rule categories against the fact set.
func (e *Engine) EvaluateRules(facts []model.AtomicClinicalFact, pctx model.PatientContext) ([]model.ClinicalAlert, error) {
	tl, err := e.ResolveTimeline(facts, pctx)
	if err != nil {
		return nil, err
	}
	alerts := e.evaluate(facts, tl, pctx)
	if err := checkReferences(facts, alerts, nil, nil); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (e *Engine) evaluate(facts []model.AtomicClinicalFact, tl model.Timeline, pctx model.PatientContext) []model.ClinicalAlert {
	alerts := e.rules.Evaluate(rules.NewInput(facts, tl, pctx), e.config.Rules)
	if alerts == nil {
		alerts = []model.ClinicalAlert{}
	}
	return alerts
}

// Validate produces the full validation report for a fact-set snapshot.
// Only structural problems with the input are errors; every clinical or
// data-quality finding is reported inside the returned report.
func (e *Engine) Validate(ctx context.Context, facts []model.AtomicClinicalFact, pctx model.PatientContext) (*model.ValidationReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "validate")
	}

	// 1. Resolve timeline (fails on malformed facts)
	tl, err := e.ResolveTimeline(facts, pctx)
	if err != nil {
		return nil, err
	}

	// 2. Detect conflicts
	conflicts := e.DetectConflicts(tl.Events, tl.Anchor)

	// 3. Rules and validation stages are independent of each other
	var (
		alerts []model.ClinicalAlert
		stages []model.StageResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		alerts = e.evaluate(facts, tl, pctx)
		return nil
	})
	g.Go(func() error {
		var err error
		stages, err = e.validator.Validate(gctx, validate.Input{
			Facts:     facts,
			Timeline:  tl,
			Conflicts: conflicts,
			Context:   pctx,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "validation stages")
	}

	issues := validate.Issues(stages)
	if issues == nil {
		issues = []model.ValidationIssue{}
	}

	// 4. Every output must reference input facts
	if err := checkReferences(facts, alerts, conflicts, issues); err != nil {
		return nil, err
	}

	// 5. Score and gate
	verdict := e.scorer.Calculate(stages, alerts, conflicts)

	// 6. Identify the snapshot
	digest, err := e.SnapshotDigest(facts, pctx)
	if err != nil {
		return nil, err
	}

	report := &model.ValidationReport{
		ReportID:           uuid.NewSHA1(ReportNamespace, []byte(digest)).String(),
		SnapshotDigest:     digest,
		PatientID:          pctx.PatientID,
		Scores:             verdict.Scores,
		Overall:            verdict.Overall,
		Stages:             stages,
		Issues:             issues,
		SafeForClinicalUse: verdict.SafeForClinicalUse,
		RequiresReview:     verdict.RequiresReview,
		Signals:            verdict.Signals,
		Conflicts:          conflicts,
		Alerts:             alerts,
		Timeline:           tl,
		TimelineSummary:    tl.Summary(conflicts),

		MissingRequiredFields:     validate.MissingRequiredFields(facts),
		MissingExpectedCategories: validate.MissingExpectedCategories(facts),
	}
	if report.MissingRequiredFields == nil {
		report.MissingRequiredFields = []model.MissingFields{}
	}
	if report.MissingExpectedCategories == nil {
		report.MissingExpectedCategories = []model.EntityCategory{}
	}

	e.logger.Debugw("validated fact set",
		logger.FieldPatientID, pctx.PatientID,
		logger.FieldReportID, report.ReportID,
		logger.FieldFacts, len(facts),
		logger.FieldAlerts, len(alerts),
		logger.FieldConflicts, len(conflicts),
		logger.FieldScore, report.Overall,
		logger.FieldSafe, report.SafeForClinicalUse,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	return report, nil
}

// snapshot is the canonical form hashed into the report id
type snapshot struct {
	Context model.PatientContext       `json:"context"`
	Facts   []model.AtomicClinicalFact `json:"facts"`
	Config  model.Config               `json:"config"`
}

// SnapshotDigest hashes the fact set (in id order), context and configuration.
// Input order does not change the digest.
func (e *Engine) SnapshotDigest(facts []model.AtomicClinicalFact, pctx model.PatientContext) (string, error) {
	data, err := json.Marshal(snapshot{
		Context: pctx,
		Facts:   model.SortedByID(facts),
		Config:  e.config,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// checkReferences fails when any output names a fact id that is not in the input.
func checkReferences(facts []model.AtomicClinicalFact, alerts []model.ClinicalAlert, conflicts []model.Conflict, issues []model.ValidationIssue) error {
	known := make(map[string]bool, len(facts))
	for _, f := range facts {
		known[f.ID] = true
	}

	var dangling []string
	check := func(owner string, ids []string) {
		for _, id := range ids {
			if !known[id] {
				dangling = append(dangling, owner+" -> "+id)
			}
		}
	}
	for _, a := range alerts {
		check("alert "+a.ID, a.FactIDs)
	}
	for _, c := range conflicts {
		check("conflict "+c.ID, c.FactIDs)
	}
	for _, is := range issues {
		check("issue "+string(is.Stage), is.FactIDs)
	}

	if len(dangling) == 0 {
		return nil
	}
	sort.Strings(dangling)
	return errors.Wrapf(errors.ErrDanglingReference, "%d dangling reference(s): %v", len(dangling), dangling)
}

package worker

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/logger"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/pipeline"
)

// Evaluator validates one patient's fact set
type Evaluator interface {
	Validate(ctx context.Context, facts []model.AtomicClinicalFact, pctx model.PatientContext) (*model.ValidationReport, error)
}

// Observer is notified of every finished bundle
type Observer interface {
	Observe(result *BundleResult)
}

// BundleJob loads and validates one bundle file
type BundleJob struct {
	Path      string
	Loader    *pipeline.Loader
	Evaluator Evaluator
}

// Execute executes the bundle job
func (j *BundleJob) Execute(ctx context.Context) Result {
	start := time.Now()
	res := &BundleResult{Path: j.Path}

	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	bundle, err := j.Loader.Load(j.Path)
	if err != nil {
		res.Error = err
		res.Duration = time.Since(start)
		return res
	}
	res.PatientID = bundle.PatientID

	report, err := j.Evaluator.Validate(ctx, bundle.Facts, bundle.EffectiveContext())
	res.Report = report
	res.Error = err
	res.Duration = time.Since(start)
	return res
}

// BundleResult represents the result of a bundle job
type BundleResult struct {
	Path      string
	PatientID string
	Report    *model.ValidationReport
	Error     error
	Duration  time.Duration
}

// GetError returns the error from the bundle result
func (r *BundleResult) GetError() error {
	return r.Error
}

// Summary aggregates a batch run
type Summary struct {
	Total          int `json:"total"`
	Failed         int `json:"failed"`
	Safe           int `json:"safe_for_clinical_use"`
	RequiresReview int `json:"requires_review"`
	CriticalAlerts int `json:"critical_alerts"`
}

// Summarize counts outcomes across results.
func Summarize(results []*BundleResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil || r.Report == nil {
			s.Failed++
			continue
		}
		if r.Report.SafeForClinicalUse {
			s.Safe++
		}
		if r.Report.RequiresReview {
			s.RequiresReview++
		}
		s.CriticalAlerts += r.Report.CountAlerts(model.SeverityCritical)
	}
	return s
}

// BatchProcessor validates multiple bundles concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	loader      *pipeline.Loader
	concurrency int
	observers   []Observer
	logger      *zap.SugaredLogger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, loader *pipeline.Loader, concurrency int) *BatchProcessor {
	if loader == nil {
		loader = pipeline.NewLoader(0)
	}
	return &BatchProcessor{
		evaluator:   evaluator,
		loader:      loader,
		concurrency: concurrency,
		logger:      logger.ComponentLogger("worker"),
	}
}

// WithObserver registers an observer for finished bundles.
func (b *BatchProcessor) WithObserver(o Observer) *BatchProcessor {
	b.observers = append(b.observers, o)
	return b
}

// ProcessFiles validates bundle files concurrently. Results are ordered by
// path; a failing bundle does not stop the others.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*BundleResult {
	if len(paths) == 0 {
		return []*BundleResult{}
	}

	b.logger.Debugw("starting batch",
		logger.FieldCount, len(paths),
		logger.FieldWorkers, b.concurrency,
	)

	// Create worker pool
	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	// Submit jobs
	for _, path := range paths {
		job := &BundleJob{
			Path:      path,
			Loader:    b.loader,
			Evaluator: b.evaluator,
		}
		if !pool.Submit(job) {
			break
		}
	}

	// Wait for all jobs to complete
	results := pool.Wait()

	bundleResults := make([]*BundleResult, len(paths))
	for i, path := range paths {
		if i < len(results) && results[i] != nil {
			bundleResults[i] = results[i].(*BundleResult)
			continue
		}

		// Jobs dropped by cancellation still get a result
		err := ctx.Err()
		if err == nil {
			err = errors.New("bundle was not processed")
		}
		bundleResults[i] = &BundleResult{Path: path, Error: err}
	}

	sort.SliceStable(bundleResults, func(i, j int) bool {
		return bundleResults[i].Path < bundleResults[j].Path
	})

	for _, res := range bundleResults {
		b.record(res)
	}
	return bundleResults
}

func (b *BatchProcessor) record(res *BundleResult) {
	for _, o := range b.observers {
		o.Observe(res)
	}

	if res.Error != nil {
		b.logger.Warnw("bundle failed",
			logger.FieldFile, res.Path,
			logger.FieldError, res.Error,
		)
		return
	}
	b.logger.Debugw("bundle validated",
		logger.FieldFile, res.Path,
		logger.FieldPatientID, res.PatientID,
		logger.FieldReportID, res.Report.ReportID,
		logger.FieldScore, res.Report.Overall,
		logger.FieldSafe, res.Report.SafeForClinicalUse,
		logger.FieldDurationMS, res.Duration.Milliseconds(),
	)
}

// ProcessList reads bundle paths from a list file and validates them
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*BundleResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, errors.Wrap(err, "read bundle list")
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ReadPathsFromFile reads bundle paths from a file (one per line). Relative
// paths are resolved against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		// Deduplicate paths
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan file")
	}

	return paths, nil
}

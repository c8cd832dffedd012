// Package validate runs the six validation stages over a resolved fact set.
package validate

import (
	"context"
	"math"
	"sync"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Input is what every stage sees. Stages only read it.
type Input struct {
	Facts     []model.AtomicClinicalFact
	Timeline  model.Timeline
	Conflicts []model.Conflict
	Context   model.PatientContext
}

type stageFunc func(Input) model.StageResult

// Validator runs the validation stages concurrently
type Validator struct {
	cfg        model.ValidationConfig
	ranges     *RangeTable
	maxWorkers int
	stages     []stageFunc
}

// NewValidator creates a new validator
func NewValidator(cfg model.ValidationConfig, maxWorkers int) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = len(model.Stages)
	}

	v := &Validator{
		cfg:        cfg,
		ranges:     DefaultRanges(),
		maxWorkers: maxWorkers,
	}
	// execution order; results keep this order regardless of scheduling
	v.stages = []stageFunc{
		v.completeness,
		v.accuracy,
		v.temporalCoherence,
		v.contradiction,
		v.missingData,
		v.crossValidation,
	}
	return v
}

// WithRanges replaces the cross-validation range table.
func (v *Validator) WithRanges(t *RangeTable) *Validator {
	v.ranges = t
	return v
}

// Validate runs all stages and returns their results in stage order.
// It fails only when ctx is cancelled, in which case no results are returned.
func (v *Validator) Validate(ctx context.Context, in Input) ([]model.StageResult, error) {
	results := make([]model.StageResult, len(v.stages))
	var wg sync.WaitGroup

	// Create semaphore to limit concurrent stages
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, stage := range v.stages {
		wg.Add(1)
		go func(idx int, run stageFunc) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}

			// Release semaphore when done
			defer func() { <-semaphore }()

			results[idx] = run(in)
		}(i, stage)
	}

	// Wait for all stages to complete
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Issues flattens stage issues in stage order.
func Issues(results []model.StageResult) []model.ValidationIssue {
	var out []model.ValidationIssue
	for _, r := range results {
		out = append(out, r.Issues...)
	}
	return out
}

// percent returns num/den as a 0-100 score rounded to two decimals.
func percent(num, den int) float64 {
	if den == 0 {
		return 100
	}
	return round2(float64(num) / float64(den) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

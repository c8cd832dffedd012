package model

import (
	"github.com/ppiankov/neurotrace/internal/errors"
)

// Config holds all evaluation settings. It is built once at startup and passed by
// value into every operation; nothing mutates it during evaluation.
type Config struct {
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Workers    WorkerConfig     `yaml:"workers" mapstructure:"workers"`
}

// ValidationConfig tunes the six validation stages
type ValidationConfig struct {
	MinConfidence          float64 `yaml:"min_confidence" mapstructure:"min_confidence"`                     // Accuracy threshold [0,1]
	PassThreshold          float64 `yaml:"pass_threshold" mapstructure:"pass_threshold"`                     // Overall score needed to be safe
	ValueConflictTolerance float64 `yaml:"value_conflict_tolerance" mapstructure:"value_conflict_tolerance"` // Relative difference treated as contradiction

	// ImplausibleChange maps a lab/vital name to the largest believable change
	// within WindowHours. Subject to clinical review.
	ImplausibleChange []ChangeLimit `yaml:"implausible_change" mapstructure:"implausible_change"`
}

// ChangeLimit is a per-analyte plausibility bound
type ChangeLimit struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	MaxDelta    float64 `yaml:"max_delta" mapstructure:"max_delta"`
	WindowHours float64 `yaml:"window_hours" mapstructure:"window_hours"`
}

// TemporalConfig tunes the resolver and conflict detector
type TemporalConfig struct {
	PODCeiling           int `yaml:"pod_ceiling" mapstructure:"pod_ceiling"`
	ToleranceDays        int `yaml:"tolerance_days" mapstructure:"tolerance_days"`
	MaxStateDurationDays int `yaml:"max_state_duration_days" mapstructure:"max_state_duration_days"`
	ProcedureGapMinutes  int `yaml:"procedure_gap_minutes" mapstructure:"procedure_gap_minutes"` // Distinct procedures closer than this conflict
}

// RulesConfig enables or disables rule categories
type RulesConfig struct {
	SeizureProphylaxis    bool `yaml:"seizure_prophylaxis" mapstructure:"seizure_prophylaxis"`
	DVTProphylaxis        bool `yaml:"dvt_prophylaxis" mapstructure:"dvt_prophylaxis"`
	SteroidManagement     bool `yaml:"steroid_management" mapstructure:"steroid_management"`
	ElectrolyteMonitoring bool `yaml:"electrolyte_monitoring" mapstructure:"electrolyte_monitoring"`
	HemorrhageRisk        bool `yaml:"hemorrhage_risk" mapstructure:"hemorrhage_risk"`
	DischargeReadiness    bool `yaml:"discharge_readiness" mapstructure:"discharge_readiness"`
}

// Enabled reports whether a category is switched on.
func (r RulesConfig) Enabled(c AlertCategory) bool {
	switch c {
	case AlertSeizureProphylaxis:
		return r.SeizureProphylaxis
	case AlertDVTProphylaxis:
		return r.DVTProphylaxis
	case AlertSteroidManagement:
		return r.SteroidManagement
	case AlertElectrolyteMonitoring:
		return r.ElectrolyteMonitoring
	case AlertHemorrhageRisk:
		return r.HemorrhageRisk
	case AlertDischargeReadiness:
		return r.DischargeReadiness
	}
	return false
}

// WithCategory returns a copy with one category switched.
func (r RulesConfig) WithCategory(c AlertCategory, on bool) RulesConfig {
	switch c {
	case AlertSeizureProphylaxis:
		r.SeizureProphylaxis = on
	case AlertDVTProphylaxis:
		r.DVTProphylaxis = on
	case AlertSteroidManagement:
		r.SteroidManagement = on
	case AlertElectrolyteMonitoring:
		r.ElectrolyteMonitoring = on
	case AlertHemorrhageRisk:
		r.HemorrhageRisk = on
	case AlertDischargeReadiness:
		r.DischargeReadiness = on
	}
	return r
}

// WorkerConfig controls batch parallelism
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Validation: ValidationConfig{
			MinConfidence:          0.7,
			PassThreshold:          85,
			ValueConflictTolerance: 0.05,
			ImplausibleChange: []ChangeLimit{
				{Name: "sodium", MaxDelta: 30, WindowHours: 24},
				{Name: "potassium", MaxDelta: 3, WindowHours: 24},
				{Name: "hemoglobin", MaxDelta: 5, WindowHours: 24},
			},
		},
		Temporal: TemporalConfig{
			PODCeiling:           365,
			ToleranceDays:        0,
			MaxStateDurationDays: 365,
			ProcedureGapMinutes:  30,
		},
		Rules: RulesConfig{
			SeizureProphylaxis:    true,
			DVTProphylaxis:        true,
			SteroidManagement:     true,
			ElectrolyteMonitoring: true,
			HemorrhageRisk:        true,
			DischargeReadiness:    true,
		},
		Workers: WorkerConfig{Concurrency: 4},
	}
}

// Validate rejects settings that would make evaluation meaningless.
func (c Config) Validate() error {
	v := c.Validation
	if v.MinConfidence < 0 || v.MinConfidence > 1 {
		return errors.NewConfigError("validation.min_confidence", "must be within [0,1], got %v", v.MinConfidence)
	}
	if v.PassThreshold < 0 || v.PassThreshold > 100 {
		return errors.NewConfigError("validation.pass_threshold", "must be within [0,100], got %v", v.PassThreshold)
	}
	if v.ValueConflictTolerance < 0 {
		return errors.NewConfigError("validation.value_conflict_tolerance", "must not be negative, got %v", v.ValueConflictTolerance)
	}
	for _, l := range v.ImplausibleChange {
		if l.Name == "" || l.MaxDelta <= 0 || l.WindowHours <= 0 {
			return errors.NewConfigError("validation.implausible_change", "entry %+v needs a name and positive max_delta/window_hours", l)
		}
	}

	t := c.Temporal
	if t.PODCeiling <= 0 {
		return errors.NewConfigError("temporal.pod_ceiling", "must be positive, got %d", t.PODCeiling)
	}
	if t.ToleranceDays < 0 {
		return errors.NewConfigError("temporal.tolerance_days", "must not be negative, got %d", t.ToleranceDays)
	}
	if t.MaxStateDurationDays <= 0 {
		return errors.NewConfigError("temporal.max_state_duration_days", "must be positive, got %d", t.MaxStateDurationDays)
	}
	if t.ProcedureGapMinutes < 0 {
		return errors.NewConfigError("temporal.procedure_gap_minutes", "must not be negative, got %d", t.ProcedureGapMinutes)
	}

	if c.Workers.Concurrency < 1 {
		return errors.NewConfigError("workers.concurrency", "must be at least 1, got %d", c.Workers.Concurrency)
	}
	return nil
}

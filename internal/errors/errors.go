// Package errors provides error handling for neurotrace.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping, hints)
// and defines the sentinel errors of the failure taxonomy:
//
//   - structural errors: malformed facts or references to unknown fact ids.
//     These are integration bugs and fail the call.
//   - configuration errors: invalid thresholds, detected before any evaluation.
//
// Data-quality findings (conflicts, alerts, validation issues) are never errors;
// they are the normal output of an evaluation.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	Join      = crdb.Join
)

// AssertionFailedf reports a broken internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

var (
	// ErrMalformedFact indicates an input fact that cannot be evaluated
	// (missing id, duplicate id, unknown category, detail/category mismatch, ...).
	ErrMalformedFact = New("malformed clinical fact")

	// ErrDanglingReference indicates an output that references a fact id
	// not present in the input fact set.
	ErrDanglingReference = New("reference to unknown fact")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = New("invalid configuration")
)

// IsStructural reports whether err is a structural (integration) error.
func IsStructural(err error) bool {
	return err != nil && IsAny(err, ErrMalformedFact, ErrDanglingReference)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}

// NewMalformedFactError creates a structural error for the fact with the given id.
func NewMalformedFactError(factID string, format string, args ...interface{}) error {
	return Wrapf(ErrMalformedFact, "fact %q: %s", factID, Newf(format, args...).Error())
}

// NewConfigError creates a configuration error for a named setting.
func NewConfigError(setting string, format string, args ...interface{}) error {
	return WithHint(
		Wrapf(ErrInvalidConfig, "%s: %s", setting, Newf(format, args...).Error()),
		"check ~/.neurotrace/config.yaml and NEUROTRACE_* environment variables",
	)
}

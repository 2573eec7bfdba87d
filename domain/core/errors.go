package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Load-time errors (fatal: abort the run)
	ErrDataLoad             = errors.New("data load failed")
	ErrSubjectColumnMissing = fmt.Errorf("%w: subject ID column absent", ErrDataLoad)
	ErrMalformedTable       = fmt.Errorf("%w: malformed table", ErrDataLoad)
	ErrEmptyCohort          = fmt.Errorf("%w: inner join produced no subjects", ErrDataLoad)

	// Per-feature fit errors (recoverable: recorded as NaN result rows)
	ErrModelFit       = errors.New("model fit failed")
	ErrRankDeficient  = fmt.Errorf("%w: rank-deficient design matrix", ErrModelFit)
	ErrDegreesFreedom = fmt.Errorf("%w: non-positive residual degrees of freedom", ErrModelFit)

	// Join diagnostics (never fatal: mismatched subjects are dropped)
	ErrJoinMismatch = errors.New("subject present in only one table")

	// Validation errors
	ErrNegativeAbundance = errors.New("negative abundance entry")
	ErrColumnNotFound    = errors.New("column not found")
	ErrFeatureNotFound   = errors.New("feature not found")
	ErrInsufficientData  = errors.New("insufficient data for analysis")
)

// Error constructors with context
func NewDataLoadError(table string, err error) error {
	return fmt.Errorf("%w: table %s: %v", ErrDataLoad, table, err)
}

func NewModelFitError(feature FeatureKey, err error) error {
	return fmt.Errorf("%w for feature %s: %v", ErrModelFit, feature, err)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// Error checking helpers
func IsDataLoadError(err error) bool {
	return errors.Is(err, ErrDataLoad)
}

func IsModelFitError(err error) bool {
	return errors.Is(err, ErrModelFit)
}

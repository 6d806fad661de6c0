package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors
	ErrShapeMismatch       = errors.New("per-study arrays have mismatched lengths")
	ErrNonPositiveVariance = errors.New("sampling variance must be strictly positive")
	ErrNonPositiveSample   = errors.New("sample size must be strictly positive")
	ErrDuplicateStudyID    = errors.New("duplicate study ID")
	ErrEmptyDataset        = errors.New("dataset contains no studies")
	ErrMissingVariances    = errors.New("estimator requires sampling variances")
	ErrMissingSampleSizes  = errors.New("estimator requires sample sizes")
	ErrDegeneratePValue    = errors.New("p-value of exactly 0 or 1 is undefined for combination")

	// Model structure errors
	ErrRankDeficient = errors.New("covariate matrix is rank deficient")
	ErrTooFewStudies = errors.New("fewer studies than regression coefficients")

	// External collaborator errors
	ErrSamplerUnavailable = errors.New("no Bayesian sampler configured")
)

// NewValidationError attaches field context to a validation sentinel
func NewValidationError(sentinel error, field string, detail string) error {
	return fmt.Errorf("%w: %s (%s)", sentinel, field, detail)
}

// IsValidationError reports whether err stems from malformed input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrNonPositiveVariance) ||
		errors.Is(err, ErrNonPositiveSample) ||
		errors.Is(err, ErrDuplicateStudyID) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrMissingVariances) ||
		errors.Is(err, ErrMissingSampleSizes) ||
		errors.Is(err, ErrDegeneratePValue)
}

// IsDesignError reports whether err stems from a structurally unfittable model
func IsDesignError(err error) bool {
	return errors.Is(err, ErrRankDeficient) || errors.Is(err, ErrTooFewStudies)
}

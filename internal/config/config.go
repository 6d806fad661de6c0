// Package config carries the tuning knobs of the estimation engine as
// explicit values passed into fits, never as process-wide mutable state.
package config

import (
	"os"
	"strconv"

	"gometa/internal/errors"
)

// FitConfig controls the iterative optimizers used by likelihood-based
// estimators and by the tau2 confidence-interval search.
type FitConfig struct {
	// Tol is the gradient-norm (or bracket-width) convergence tolerance.
	Tol float64
	// MaxIterations caps Newton iterations and bisection steps.
	MaxIterations int
	// RidgeDamping scales the one-iteration ridge added to a singular
	// Hessian, relative to its largest diagonal entry.
	RidgeDamping float64
	// Tau2MaxFactor bounds the tau2 search at Tau2MaxFactor * mean(v).
	Tau2MaxFactor float64
}

// DefaultFitConfig returns the documented defaults.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Tol:           1e-8,
		MaxIterations: 100,
		RidgeDamping:  1e-4,
		Tau2MaxFactor: 1e5,
	}
}

// PermutationConfig controls permutation inference. NPermutations is
// required: there is no default, and requests above MaxPermutations are
// rejected rather than silently truncated.
type PermutationConfig struct {
	NPermutations int
	Workers       int   // 0 means one worker per CPU
	Seed          int64 // base seed for the deterministic permutation streams
}

// MaxPermutations is the sane upper bound on requested permutations.
const MaxPermutations = 1_000_000

// Validate checks the permutation request.
func (c PermutationConfig) Validate() error {
	if c.NPermutations <= 0 {
		return errors.ConfigInvalid("n_permutations must be positive")
	}
	if c.NPermutations > MaxPermutations {
		return errors.ConfigInvalid("n_permutations exceeds the supported maximum")
	}
	if c.Workers < 0 {
		return errors.ConfigInvalid("workers must be non-negative")
	}
	return nil
}

// FromEnv overlays GOMETA_* environment variables onto a FitConfig.
// Unset variables leave the input untouched.
func FromEnv(base FitConfig) (FitConfig, error) {
	out := base
	if s := os.Getenv("GOMETA_TOL"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return base, errors.ConfigInvalid("GOMETA_TOL must be a positive float")
		}
		out.Tol = v
	}
	if s := os.Getenv("GOMETA_MAX_ITERATIONS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return base, errors.ConfigInvalid("GOMETA_MAX_ITERATIONS must be a positive integer")
		}
		out.MaxIterations = v
	}
	if s := os.Getenv("GOMETA_RIDGE_DAMPING"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return base, errors.ConfigInvalid("GOMETA_RIDGE_DAMPING must be a positive float")
		}
		out.RidgeDamping = v
	}
	return out, nil
}

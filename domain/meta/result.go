// Package meta defines the result value types produced by the estimator
// family and consumed by the inference layer and external reporting
// collaborators.
package meta

import (
	"math"

	"gometa/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// FitResult is the output of a single Estimator.Fit call. It is created once,
// returned by value semantics, and never mutated afterwards. A fit that
// exhausted its iteration budget still returns a FitResult with
// Converged=false so callers can inspect the last iterate.
type FitResult struct {
	EstimatorName string         `json:"estimator_name"`
	RunID         core.RunID     `json:"run_id"`
	CreatedAt     core.Timestamp `json:"created_at"`

	// Beta holds the regression coefficients; for intercept-only models this
	// is the pooled effect. CovBeta is the p x p covariance of Beta, row-major.
	Beta    []float64 `json:"beta"`
	CovBeta []float64 `json:"cov_beta"`
	Names   []string  `json:"names"`

	// Tau2 is the between-study variance. Fixed-effect variants report 0 with
	// RandomEffects=false.
	Tau2          float64 `json:"tau2"`
	RandomEffects bool    `json:"random_effects"`

	// Sigma2 is the common within-study variance scale estimated by
	// sample-size based variants; 0 otherwise.
	Sigma2 float64 `json:"sigma2,omitempty"`

	Converged   bool `json:"converged"`
	NIterations int  `json:"n_iterations"`
}

// P returns the number of coefficients.
func (r *FitResult) P() int { return len(r.Beta) }

// BetaSE returns per-coefficient standard errors from the diagonal of CovBeta.
func (r *FitResult) BetaSE() []float64 {
	p := len(r.Beta)
	se := make([]float64, p)
	for j := 0; j < p; j++ {
		se[j] = math.Sqrt(r.CovBeta[j*p+j])
	}
	return se
}

// Summary tabulates per-coefficient z-scores, two-sided p-values and Wald
// confidence intervals of coverage 1-alpha.
func (r *FitResult) Summary(alpha float64) []CoefficientStat {
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	zCrit := norm.Quantile(1 - alpha/2)

	se := r.BetaSE()
	out := make([]CoefficientStat, len(r.Beta))
	for j, b := range r.Beta {
		z := math.Inf(1)
		if se[j] > 0 {
			z = b / se[j]
		}
		name := ""
		if j < len(r.Names) {
			name = r.Names[j]
		}
		out[j] = CoefficientStat{
			Name:     name,
			Estimate: b,
			SE:       se[j],
			Z:        z,
			PValue:   2 * (1 - norm.CDF(math.Abs(z))),
			CILower:  b - zCrit*se[j],
			CIUpper:  b + zCrit*se[j],
		}
	}
	return out
}

// CoefficientStat is one row of a fixed-effect summary table.
type CoefficientStat struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	SE       float64 `json:"se"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// HeterogeneityResult reports Cochran's Q against the fixed-effect fit.
type HeterogeneityResult struct {
	Q      float64 `json:"q"`
	Df     int     `json:"df"`
	PValue float64 `json:"p_value"`
	I2     float64 `json:"i2"` // percent, clipped to [0, 100]
}

// Tau2CI is a confidence interval for the between-study variance, obtained by
// inverting the generalized Q statistic (Q-profile method).
type Tau2CI struct {
	Tau2      float64 `json:"tau2"`
	Lower     float64 `json:"ci_lower"`
	Upper     float64 `json:"ci_upper"`
	Alpha     float64 `json:"alpha"`
	Converged bool    `json:"converged"`
}

// NullSummary describes the empirical null distribution of a permutation run.
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// PermutationResult reports a permutation-based significance test for one
// regression coefficient.
type PermutationResult struct {
	RunID             core.RunID     `json:"run_id"`
	CreatedAt         core.Timestamp `json:"created_at"`
	Coefficient       string         `json:"coefficient"`
	ObservedStatistic float64        `json:"observed_statistic"`
	PValue            float64        `json:"p_value"`
	NPermutations     int            `json:"n_permutations"`
	Exhaustive        bool           `json:"exhaustive"`
	NullDistribution  []float64      `json:"null_distribution"`
	NullSummary       NullSummary    `json:"null_summary"`
}

// CombinedResult reports a p-value-only pooling test.
type CombinedResult struct {
	Method    string  `json:"method"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	K         int     `json:"k"`
}

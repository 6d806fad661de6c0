// Package combine implements p-value-only pooling across studies: Stouffer's
// weighted z-score method and Fisher's chi-square method. Neither models
// between-study heterogeneity, so the component sits apart from the
// estimator family and operates directly on per-study inputs.
package combine

import (
	"fmt"
	"math"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/internal/errors"

	"gonum.org/v1/gonum/stat/distuv"
)

// Method names reported on CombinedResult.
const (
	NameStouffer = "stouffer"
	NameFisher   = "fisher"
)

// validatePValues rejects p-values of exactly 0 or 1, for which the log and
// inverse-normal transforms are undefined.
func validatePValues(p []float64) error {
	if len(p) == 0 {
		return errors.ValidationError("no p-values to combine", core.ErrEmptyDataset)
	}
	for i, pi := range p {
		if pi <= 0 || pi >= 1 || math.IsNaN(pi) {
			return errors.ValidationError(
				fmt.Sprintf("p[%d]=%g", i, pi), core.ErrDegeneratePValue)
		}
	}
	return nil
}

// StoufferP combines one-sided p-values via the inverse-normal transform.
// Weights default to 1 when nil.
func StoufferP(p, weights []float64) (*meta.CombinedResult, error) {
	if err := validatePValues(p); err != nil {
		return nil, err
	}
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	z := make([]float64, len(p))
	for i, pi := range p {
		z[i] = norm.Quantile(1 - pi)
	}
	return StoufferZ(z, weights)
}

// StoufferZ combines one-sided z-scores: Z = sum(w*z) / sqrt(sum(w^2)).
func StoufferZ(z, weights []float64) (*meta.CombinedResult, error) {
	if len(z) == 0 {
		return nil, errors.ValidationError("no z-scores to combine", core.ErrEmptyDataset)
	}
	if weights != nil && len(weights) != len(z) {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "weights",
			fmt.Sprintf("%d weights for %d studies", len(weights), len(z)))
	}

	num, sumSq := 0.0, 0.0
	for i, zi := range z {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		num += w * zi
		sumSq += w * w
	}
	zc := num / math.Sqrt(sumSq)

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	return &meta.CombinedResult{
		Method:    NameStouffer,
		Statistic: zc,
		PValue:    1 - norm.CDF(zc),
		K:         len(z),
	}, nil
}

// SampleSizeWeights returns the sqrt(n) weighting conventionally used with
// Stouffer's method when sample sizes are available.
func SampleSizeWeights(n []float64) ([]float64, error) {
	w := make([]float64, len(n))
	for i, ni := range n {
		if ni <= 0 {
			return nil, core.NewValidationError(core.ErrNonPositiveSample, "n",
				fmt.Sprintf("n[%d]=%g", i, ni))
		}
		w[i] = math.Sqrt(ni)
	}
	return w, nil
}

// Fisher combines one-sided p-values via -2*sum(log p), referred to a
// chi-square distribution with 2k degrees of freedom.
func Fisher(p []float64) (*meta.CombinedResult, error) {
	if err := validatePValues(p); err != nil {
		return nil, err
	}
	stat := 0.0
	for _, pi := range p {
		stat += math.Log(pi)
	}
	stat *= -2

	chi := distuv.ChiSquared{K: float64(2 * len(p))}
	return &meta.CombinedResult{
		Method:    NameFisher,
		Statistic: stat,
		PValue:    1 - chi.CDF(stat),
		K:         len(p),
	}, nil
}

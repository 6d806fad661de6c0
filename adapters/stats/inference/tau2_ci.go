package inference

import (
	"context"
	"math"

	"gometa/adapters/stats/estimators"
	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal/config"
	"gometa/internal/errors"
	"gometa/internal/optimize"

	"gonum.org/v1/gonum/stat/distuv"
)

// QProfileCI inverts the generalized Q statistic to obtain a confidence
// interval for tau2 (the Q-profile method). Each candidate tau2 refits beta
// by weighted least squares, so the search reuses the bounded scalar
// primitive of the optimizer core. When the dataset carries no sampling
// variances, the fitted sigma2/n from a sample-size based estimator stands in
// for them.
func QProfileCI(ctx context.Context, ds *dataset.Dataset, fit *meta.FitResult, alpha float64, cfg config.FitConfig) (*meta.Tau2CI, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.ConfigInvalid("alpha must lie in (0, 1)")
	}

	v := ds.Variances()
	if v == nil {
		if fit.Sigma2 <= 0 || !ds.HasSampleSizes() {
			return nil, errors.ValidationError(
				"tau2 CI needs sampling variances or a sample-size based fit", core.ErrMissingVariances)
		}
		n := ds.SampleSizes()
		v = make([]float64, len(n))
		for i := range v {
			v[i] = fit.Sigma2 / n[i]
		}
	}

	k := ds.K()
	p := ds.P()
	df := k - p
	if df <= 0 {
		return nil, errors.ValidationError("no residual degrees of freedom for a tau2 interval", core.ErrTooFewStudies)
	}

	chi := distuv.ChiSquared{K: float64(df)}
	targetLower := chi.Quantile(1 - alpha/2)
	targetUpper := chi.Quantile(alpha / 2)

	upperCap := cfg.Tau2MaxFactor * mean(v)
	tol := cfg.Tol * math.Max(1, upperCap)

	x := ds.Design()
	y := ds.Effects()
	qGen := func(tau2 float64) (float64, error) {
		beta, err := estimators.ProfileBeta(ds, v, tau2)
		if err != nil {
			return 0, err
		}
		q := 0.0
		for i := 0; i < k; i++ {
			fitVal := 0.0
			for j := 0; j < p; j++ {
				fitVal += x.At(i, j) * beta[j]
			}
			r := y[i] - fitVal
			q += r * r / (v[i] + tau2)
		}
		return q, nil
	}

	var solveErr error
	objective := func(target float64) func(float64) float64 {
		return func(tau2 float64) float64 {
			q, err := qGen(tau2)
			if err != nil {
				solveErr = err
				return 0
			}
			return q - target
		}
	}

	// Q decreases in tau2, so the upper chi-square quantile gives the lower
	// bound and vice versa.
	lower := optimize.Bisect(objective(targetLower), 0, upperCap, tol, cfg.MaxIterations)
	upper := optimize.Bisect(objective(targetUpper), 0, upperCap, tol, cfg.MaxIterations)
	if solveErr != nil {
		return nil, solveErr
	}

	lo := lower.X
	hi := upper.X
	loConverged := lower.Converged
	hiConverged := upper.Converged

	// Same sign at both bounds: heterogeneity pinned at zero or at cap.
	if !loConverged && lo == 0 {
		loConverged = true // Q(0) already below the quantile; tau2 lower bound is exactly 0
	}

	return &meta.Tau2CI{
		Tau2:      fit.Tau2,
		Lower:     math.Max(0, lo),
		Upper:     math.Max(math.Max(0, lo), hi),
		Alpha:     alpha,
		Converged: loConverged && hiConverged,
	}, nil
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

package estimators

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal/config"
	"gometa/internal/errors"
	"gometa/internal/optimize"

	"gonum.org/v1/gonum/mat"
)

// SampleSizeML handles datasets where sampling variances are unknown but
// per-study sample sizes are available: the within-study variance is modeled
// as a common sigma2 scaled by 1/n_i, and (beta, sigma2, tau2) are
// co-estimated by maximum likelihood. Exercises the numeric-Jacobian Newton
// path since no analytic Hessian is supplied.
type SampleSizeML struct {
	Config config.FitConfig
}

// NewSampleSizeML builds the sample-size based estimator.
func NewSampleSizeML(cfg config.FitConfig) *SampleSizeML {
	return &SampleSizeML{Config: cfg}
}

// Name implements ports.Estimator.
func (e *SampleSizeML) Name() string { return NameSampleSizeML }

// Fit implements ports.Estimator.
func (e *SampleSizeML) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if !ds.HasSampleSizes() {
		return nil, errors.ValidationError("dataset has no sample sizes", core.ErrMissingSampleSizes)
	}
	x, y := ds.Design(), ds.Effects()
	n := ds.SampleSizes()
	k, p := x.Dims()

	// Moment-flavored start: OLS beta, residual variance split evenly
	// between the within- and between-study components.
	ones := make([]float64, k)
	for i := range ones {
		ones[i] = 1
	}
	beta0, _, err := solveWLS(x, y, ones)
	if err != nil {
		return nil, err
	}
	r := residuals(x, y, beta0)
	rss := 0.0
	for _, ri := range r {
		rss += ri * ri
	}
	resVar := rss / math.Max(1, float64(k-p))
	if resVar <= 0 {
		resVar = 1e-6
	}
	theta0 := append(append([]float64(nil), beta0...), 0.5*resVar*meanOf(n), 0.5*resVar)

	sigma2Floor := 1e-10 * resVar

	problem := optimize.Problem{
		Objective: func(theta []float64) float64 {
			return sampleSizeLogLik(x, y, n, theta[:p], theta[p], theta[p+1])
		},
		Project: func(theta []float64) []float64 {
			out := append([]float64(nil), theta...)
			out[p] = math.Max(out[p], sigma2Floor)
			out[p+1] = math.Max(out[p+1], 0)
			return out
		},
	}

	state := optimize.Newton(problem, theta0, optimize.Settings{
		Tol:           math.Max(e.Config.Tol, 1e-6), // numeric gradients cap the attainable precision
		MaxIterations: e.Config.MaxIterations,
		RidgeDamping:  e.Config.RidgeDamping,
	})

	sigma2 := state.Theta[p]
	tau2 := state.Theta[p+1]

	// Naive covariance at the converged variance components.
	v := make([]float64, k)
	for i := range v {
		v[i] = sigma2 / n[i]
	}
	beta, cov, err := fitWLS(x, y, v, tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameSampleSizeML,
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          tau2,
		RandomEffects: true,
		Sigma2:        sigma2,
		Converged:     state.Converged,
		NIterations:   state.Iterations,
	}, nil
}

func sampleSizeLogLik(x *mat.Dense, y, n, beta []float64, sigma2, tau2 float64) float64 {
	k, p := x.Dims()
	// Clamp rather than reject so finite-difference evaluations just outside
	// the feasible region stay finite.
	sigma2 = math.Max(sigma2, 1e-12)
	tau2 = math.Max(tau2, 0)
	ll := 0.0
	for i := 0; i < k; i++ {
		fit := 0.0
		for j := 0; j < p; j++ {
			fit += x.At(i, j) * beta[j]
		}
		vi := sigma2/n[i] + tau2
		r := y[i] - fit
		ll += -0.5*math.Log(vi) - 0.5*r*r/vi
	}
	return ll
}

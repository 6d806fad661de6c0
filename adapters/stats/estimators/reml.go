package estimators

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal/config"
	"gometa/internal/optimize"

	"gonum.org/v1/gonum/mat"
)

// RestrictedMaximumLikelihood maximizes the REML log-likelihood over tau2
// alone, profiling out beta at every iterate. Newton-Raphson on the analytic
// score is tried first; if it exhausts its budget the unimodal restricted
// likelihood is handed to the bounded golden-section search.
type RestrictedMaximumLikelihood struct {
	Config config.FitConfig
}

// NewRestrictedMaximumLikelihood builds a REML estimator with the given knobs.
func NewRestrictedMaximumLikelihood(cfg config.FitConfig) *RestrictedMaximumLikelihood {
	return &RestrictedMaximumLikelihood{Config: cfg}
}

// Name implements ports.Estimator.
func (e *RestrictedMaximumLikelihood) Name() string { return NameREML }

// Fit implements ports.Estimator.
func (e *RestrictedMaximumLikelihood) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if err := requireVariances(ds); err != nil {
		return nil, err
	}
	x, y, v := designAndData(ds)

	tau20, err := dlTau2(x, y, v)
	if err != nil {
		return nil, err
	}
	upper := tau2Cap(v, e.Config.Tau2MaxFactor)

	problem := optimize.Problem{
		Objective: func(theta []float64) float64 {
			ll, ok := remlLogLik(x, y, v, theta[0])
			if !ok {
				return math.Inf(-1)
			}
			return ll
		},
		Grad: func(theta []float64) []float64 {
			return []float64{remlScore(x, y, v, theta[0])}
		},
		Project: func(theta []float64) []float64 {
			return []float64{math.Max(0, math.Min(theta[0], upper))}
		},
	}

	state := optimize.Newton(problem, []float64{tau20}, optimize.Settings{
		Tol:           e.Config.Tol,
		MaxIterations: e.Config.MaxIterations,
		RidgeDamping:  e.Config.RidgeDamping,
	})

	tau2 := state.Theta[0]
	converged := state.Converged
	iterations := state.Iterations

	if !converged {
		// The restricted likelihood is unimodal in tau2; fall back to the
		// bounded scalar search.
		res := optimize.MaximizeScalar(func(t float64) float64 {
			ll, ok := remlLogLik(x, y, v, t)
			if !ok {
				return math.Inf(-1)
			}
			return ll
		}, 0, upper, e.Config.Tol*math.Max(1, upper), e.Config.MaxIterations*4)
		tau2 = res.X
		converged = res.Converged
		iterations += res.Iterations
	}

	// Boundary solutions collapse to zero heterogeneity.
	if tau2 < 0 {
		tau2 = 0
	}

	beta, cov, err := fitWLS(x, y, v, tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameREML,
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          tau2,
		RandomEffects: true,
		Converged:     converged,
		NIterations:   iterations,
	}, nil
}

// remlLogLik evaluates the restricted log-likelihood at tau2 (up to an
// additive constant), with beta profiled out by WLS. ok is false when the
// weighted design is singular at this tau2.
func remlLogLik(x *mat.Dense, y, v []float64, tau2 float64) (float64, bool) {
	if tau2 < 0 {
		return 0, false
	}
	k, p := x.Dims()
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / (v[i] + tau2)
	}
	beta, _, err := solveWLS(x, y, w)
	if err != nil {
		return 0, false
	}
	r := residuals(x, y, beta)

	a := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			s := 0.0
			for rr := 0; rr < k; rr++ {
				s += w[rr] * x.At(rr, i) * x.At(rr, j)
			}
			a.SetSym(i, j, s)
		}
	}
	logDet, sign := mat.LogDet(a)
	if sign <= 0 {
		return 0, false
	}

	ll := -0.5 * logDet
	for i := 0; i < k; i++ {
		ll += -0.5*math.Log(v[i]+tau2) - 0.5*w[i]*r[i]*r[i]
	}
	return ll, true
}

// remlScore is the derivative of remlLogLik in tau2. The profiled beta
// contributes nothing by the envelope property of the WLS solution.
func remlScore(x *mat.Dense, y, v []float64, tau2 float64) float64 {
	k, p := x.Dims()
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / (v[i] + tau2)
	}
	beta, cov, err := solveWLS(x, y, w)
	if err != nil {
		return 0
	}
	r := residuals(x, y, beta)

	score := 0.0
	for i := 0; i < k; i++ {
		score += -0.5*w[i] + 0.5*w[i]*w[i]*r[i]*r[i]
	}
	// + 0.5 tr((X'WX)^{-1} X'W^2X)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			s := 0.0
			for rr := 0; rr < k; rr++ {
				s += w[rr] * w[rr] * x.At(rr, i) * x.At(rr, j)
			}
			score += 0.5 * cov[i*p+j] * s
		}
	}
	return score
}

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

// MaximumLikelihood co-estimates (beta, tau2) by Newton-Raphson on the joint
// normal log-likelihood. Non-convergence is reported on the FitResult, not
// as an error.
type MaximumLikelihood struct {
	Config config.FitConfig
}

// NewMaximumLikelihood builds an ML estimator with the given optimizer knobs.
func NewMaximumLikelihood(cfg config.FitConfig) *MaximumLikelihood {
	return &MaximumLikelihood{Config: cfg}
}

// Name implements ports.Estimator.
func (e *MaximumLikelihood) Name() string { return NameML }

// Fit implements ports.Estimator.
func (e *MaximumLikelihood) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if err := requireVariances(ds); err != nil {
		return nil, err
	}
	x, y, v := designAndData(ds)
	_, p := x.Dims()

	// Start from the fixed-effect solution with the moment tau2.
	beta0, _, err := fitWLS(x, y, v, 0)
	if err != nil {
		return nil, err
	}
	tau20, err := dlTau2(x, y, v)
	if err != nil {
		return nil, err
	}
	theta0 := append(append([]float64(nil), beta0...), tau20)

	problem := optimize.Problem{
		Objective: func(theta []float64) float64 {
			return jointLogLik(x, y, v, theta[:p], theta[p])
		},
		Grad: func(theta []float64) []float64 {
			return jointScore(x, y, v, theta[:p], theta[p])
		},
		Hess: func(theta []float64) []float64 {
			return jointHessian(x, y, v, theta[:p], theta[p])
		},
		Project: func(theta []float64) []float64 {
			out := append([]float64(nil), theta...)
			out[p] = math.Max(0, math.Min(out[p], tau2Cap(v, e.Config.Tau2MaxFactor)))
			return out
		},
	}

	state := optimize.Newton(problem, theta0, optimize.Settings{
		Tol:           e.Config.Tol,
		MaxIterations: e.Config.MaxIterations,
		RidgeDamping:  e.Config.RidgeDamping,
	})

	tau2 := state.Theta[p]
	beta, cov, err := fitWLS(x, y, v, tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameML,
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          tau2,
		RandomEffects: true,
		Converged:     state.Converged,
		NIterations:   state.Iterations,
	}, nil
}

// jointLogLik is the normal log-likelihood up to an additive constant.
func jointLogLik(x *mat.Dense, y, v, beta []float64, tau2 float64) float64 {
	r := residuals(x, y, beta)
	ll := 0.0
	for i := range y {
		wi := 1 / (v[i] + tau2)
		ll += -0.5*math.Log(v[i]+tau2) - 0.5*wi*r[i]*r[i]
	}
	return ll
}

// jointScore is the gradient of jointLogLik over (beta, tau2).
func jointScore(x *mat.Dense, y, v, beta []float64, tau2 float64) []float64 {
	k, p := x.Dims()
	r := residuals(x, y, beta)
	g := make([]float64, p+1)
	for i := 0; i < k; i++ {
		wi := 1 / (v[i] + tau2)
		for j := 0; j < p; j++ {
			g[j] += wi * r[i] * x.At(i, j)
		}
		g[p] += -0.5*wi + 0.5*wi*wi*r[i]*r[i]
	}
	return g
}

// jointHessian is the analytic Hessian of jointLogLik.
func jointHessian(x *mat.Dense, y, v, beta []float64, tau2 float64) []float64 {
	k, p := x.Dims()
	d := p + 1
	r := residuals(x, y, beta)
	h := make([]float64, d*d)
	for i := 0; i < k; i++ {
		wi := 1 / (v[i] + tau2)
		w2 := wi * wi
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				h[a*d+b] -= wi * x.At(i, a) * x.At(i, b)
			}
			cross := -w2 * r[i] * x.At(i, a)
			h[a*d+p] += cross
			h[p*d+a] += cross
		}
		h[p*d+p] += 0.5*w2 - w2*wi*r[i]*r[i]
	}
	return h
}

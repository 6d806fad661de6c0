package estimators

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"

	"gonum.org/v1/gonum/mat"
)

// DerSimonianLaird estimates tau2 by the method of moments: the excess of
// Cochran's Q over its degrees of freedom, scaled by the weight structure of
// the design. Single pass, no optimizer.
type DerSimonianLaird struct{}

// Name implements ports.Estimator.
func (e *DerSimonianLaird) Name() string { return NameDL }

// Fit implements ports.Estimator.
func (e *DerSimonianLaird) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if err := requireVariances(ds); err != nil {
		return nil, err
	}
	x, y, v := designAndData(ds)

	tau2, err := dlTau2(x, y, v)
	if err != nil {
		return nil, err
	}

	beta, cov, err := fitWLS(x, y, v, tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameDL,
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          tau2,
		RandomEffects: true,
		Converged:     true,
		NIterations:   1,
	}, nil
}

// dlTau2 computes the DerSimonian-Laird moment estimate, clipped at zero.
// For the intercept-only model the denominator reduces to the familiar
// sum(w) - sum(w^2)/sum(w).
func dlTau2(x *mat.Dense, y, v []float64) (float64, error) {
	k, p := x.Dims()

	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / v[i]
	}
	beta, cov, err := solveWLS(x, y, w)
	if err != nil {
		return 0, err
	}

	r := residuals(x, y, beta)
	q := 0.0
	for i := 0; i < k; i++ {
		q += w[i] * r[i] * r[i]
	}

	// denom = tr(W) - tr((X'WX)^{-1} X'W^2 X)
	sumW := 0.0
	for _, wi := range w {
		sumW += wi
	}
	trace := 0.0
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			s := 0.0
			for rr := 0; rr < k; rr++ {
				s += w[rr] * w[rr] * x.At(rr, i) * x.At(rr, j)
			}
			trace += cov[i*p+j] * s
		}
	}
	denom := sumW - trace
	if denom <= 0 {
		return 0, nil
	}
	return math.Max(0, (q-float64(k-p))/denom), nil
}

package estimators

import (
	"context"
	"fmt"

	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/ports"
)

// Robust wraps any estimator and replaces the naive covariance of beta with
// the heteroscedasticity-consistent sandwich estimator built from per-study
// residuals. tau2 estimation is untouched: this is post-processing, not a
// tau2 method.
type Robust struct {
	Inner ports.Estimator
}

// NewRobust wraps inner with sandwich variance estimation.
func NewRobust(inner ports.Estimator) *Robust {
	return &Robust{Inner: inner}
}

// Name implements ports.Estimator.
func (e *Robust) Name() string {
	return fmt.Sprintf("%s_robust", e.Inner.Name())
}

// Fit implements ports.Estimator.
func (e *Robust) Fit(ctx context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	inner, err := e.Inner.Fit(ctx, ds)
	if err != nil {
		return nil, err
	}

	x, y := ds.Design(), ds.Effects()
	k, p := x.Dims()

	v := ds.Variances()
	if v == nil {
		// Sample-size based fit: reconstruct the modeled variances.
		n := ds.SampleSizes()
		v = make([]float64, k)
		for i := range v {
			v[i] = inner.Sigma2 / n[i]
		}
	}

	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / (v[i] + inner.Tau2)
	}
	r := residuals(x, y, inner.Beta)

	// bread = (X'WX)^{-1} (the inner fit's naive covariance);
	// meat = X'W diag(r^2) W X.
	bread := inner.CovBeta
	meat := make([]float64, p*p)
	for a := 0; a < p; a++ {
		for b := 0; b < p; b++ {
			s := 0.0
			for i := 0; i < k; i++ {
				s += w[i] * w[i] * r[i] * r[i] * x.At(i, a) * x.At(i, b)
			}
			meat[a*p+b] = s
		}
	}

	cov := matMul(matMul(bread, meat, p), bread, p)

	out := *inner
	out.EstimatorName = e.Name()
	out.CovBeta = cov
	return &out, nil
}

// matMul multiplies two row-major p x p matrices.
func matMul(a, b []float64, p int) []float64 {
	out := make([]float64, p*p)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			s := 0.0
			for l := 0; l < p; l++ {
				s += a[i*p+l] * b[l*p+j]
			}
			out[i*p+j] = s
		}
	}
	return out
}

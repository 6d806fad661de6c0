// Package estimators implements the effect-size combination strategies:
// fixed-effect weighted least squares, the method-of-moments and
// likelihood-based random-effects variants, and the robust-variance wrapper.
// Every variant shares the ports.Estimator contract and differs only in how
// the between-study variance tau2 is obtained.
package estimators

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Estimator names form the closed variant set.
const (
	NameWLS          = "weighted_least_squares"
	NameDL           = "dersimonian_laird"
	NameHedges       = "hedges"
	NameML           = "maximum_likelihood"
	NameREML         = "restricted_maximum_likelihood"
	NameSampleSizeML = "sample_size_ml"
)

// WeightedLeastSquares is the fixed-effect estimator: tau2 is held at a known
// value (zero unless configured) and beta has the closed form
// (X'WX)^{-1} X'W y with W = diag(1/(v + tau2)).
type WeightedLeastSquares struct {
	// Tau2 is an optional known between-study variance. Zero gives the
	// classic fixed-effect model.
	Tau2 float64
}

// Name implements ports.Estimator.
func (e *WeightedLeastSquares) Name() string { return NameWLS }

// Fit implements ports.Estimator.
func (e *WeightedLeastSquares) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if err := requireVariances(ds); err != nil {
		return nil, err
	}
	x, y, v := designAndData(ds)
	beta, cov, err := fitWLS(x, y, v, e.Tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameWLS,
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          e.Tau2,
		RandomEffects: e.Tau2 > 0,
		Converged:     true,
	}, nil
}

// designAndData unpacks the dataset into the shapes the solvers use.
func designAndData(ds *dataset.Dataset) (*mat.Dense, []float64, []float64) {
	return ds.Design(), ds.Effects(), ds.Variances()
}

func requireVariances(ds *dataset.Dataset) error {
	if !ds.HasVariances() {
		return errors.ValidationError("dataset has no sampling variances", core.ErrMissingVariances)
	}
	return nil
}

// fitWLS solves the weighted least-squares problem with weights 1/(v+tau2).
func fitWLS(x *mat.Dense, y, v []float64, tau2 float64) (beta, cov []float64, err error) {
	k, _ := x.Dims()
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / (v[i] + tau2)
	}
	return solveWLS(x, y, w)
}

// solveWLS computes beta = (X'WX)^{-1} X'W y and the naive covariance
// (X'WX)^{-1}. A covariate matrix that is rank deficient under the given
// weighting is reported as a design error, never silently regularized.
func solveWLS(x *mat.Dense, y, w []float64) (beta, cov []float64, err error) {
	k, p := x.Dims()

	a := mat.NewSymDense(p, nil)
	b := make([]float64, p)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			s := 0.0
			for r := 0; r < k; r++ {
				s += w[r] * x.At(r, i) * x.At(r, j)
			}
			a.SetSym(i, j, s)
		}
		s := 0.0
		for r := 0; r < k; r++ {
			s += w[r] * x.At(r, i) * y[r]
		}
		b[i] = s
	}

	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, nil, errors.DesignError("X'WX is singular", core.ErrRankDeficient)
	}

	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(p, b)); err != nil {
		return nil, nil, errors.DesignError("X'WX is singular", core.ErrRankDeficient)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, nil, errors.DesignError("X'WX is singular", core.ErrRankDeficient)
	}

	beta = append([]float64(nil), sol.RawVector().Data...)
	cov = make([]float64, p*p)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			cov[i*p+j] = inv.At(i, j)
		}
	}
	return beta, cov, nil
}

// ProfileBeta solves the weighted least-squares coefficients for an explicit
// variance vector and tau2. The Q-profile confidence interval uses it to
// refit beta at every candidate tau2, including for datasets whose variances
// were reconstructed from a sample-size based fit.
func ProfileBeta(ds *dataset.Dataset, v []float64, tau2 float64) ([]float64, error) {
	x, y := ds.Design(), ds.Effects()
	beta, _, err := fitWLS(x, y, v, tau2)
	return beta, err
}

// residuals returns y - X beta.
func residuals(x *mat.Dense, y, beta []float64) []float64 {
	k, p := x.Dims()
	r := make([]float64, k)
	for i := 0; i < k; i++ {
		fit := 0.0
		for j := 0; j < p; j++ {
			fit += x.At(i, j) * beta[j]
		}
		r[i] = y[i] - fit
	}
	return r
}

func meanOf(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// tau2Cap bounds the heterogeneity search relative to the scale of the
// sampling variances.
func tau2Cap(v []float64, factor float64) float64 {
	upper := factor * meanOf(v)
	if upper <= 0 || math.IsNaN(upper) {
		upper = factor
	}
	return upper
}

package estimators

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
)

// Hedges estimates tau2 from the unweighted residual mean square: the excess
// of the OLS mean squared error over the average sampling variance. Single
// pass, no optimizer.
type Hedges struct{}

// Name implements ports.Estimator.
func (e *Hedges) Name() string { return NameHedges }

// Fit implements ports.Estimator.
func (e *Hedges) Fit(_ context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if err := requireVariances(ds); err != nil {
		return nil, err
	}
	x, y, v := designAndData(ds)
	k, p := x.Dims()

	ones := make([]float64, k)
	for i := range ones {
		ones[i] = 1
	}
	betaOLS, _, err := solveWLS(x, y, ones)
	if err != nil {
		return nil, err
	}

	r := residuals(x, y, betaOLS)
	rss := 0.0
	for _, ri := range r {
		rss += ri * ri
	}
	tau2 := 0.0
	if k > p {
		mse := rss / float64(k-p)
		tau2 = math.Max(0, mse-meanOf(v))
	}

	beta, cov, err := fitWLS(x, y, v, tau2)
	if err != nil {
		return nil, err
	}
	return &meta.FitResult{
		EstimatorName: NameHedges,
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

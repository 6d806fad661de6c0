// Package inference provides the heterogeneity tests, tau2 confidence
// intervals, fixed-effect summary statistics and permutation-based
// significance tests layered on top of the estimator family.
package inference

import (
	"context"
	"math"

	"gometa/adapters/stats/estimators"
	"gometa/domain/dataset"
	"gometa/domain/meta"

	"gonum.org/v1/gonum/stat/distuv"
)

// QTest computes Cochran's Q against the fixed-effect fit, regardless of
// which estimator later produces tau2, together with the I^2 share of
// variation attributable to heterogeneity.
func QTest(ctx context.Context, ds *dataset.Dataset) (*meta.HeterogeneityResult, error) {
	fe := &estimators.WeightedLeastSquares{}
	res, err := fe.Fit(ctx, ds)
	if err != nil {
		return nil, err
	}

	y := ds.Effects()
	v := ds.Variances()
	x := ds.Design()
	k, p := x.Dims()

	q := 0.0
	for i := 0; i < k; i++ {
		fit := 0.0
		for j := 0; j < p; j++ {
			fit += x.At(i, j) * res.Beta[j]
		}
		r := y[i] - fit
		q += r * r / v[i]
	}

	df := k - p
	pValue := 1.0
	if df > 0 {
		chi := distuv.ChiSquared{K: float64(df)}
		pValue = 1 - chi.CDF(q)
	}

	i2 := 0.0
	if q > 0 && df > 0 {
		i2 = 100 * (q - float64(df)) / q
	}
	i2 = math.Max(0, math.Min(100, i2))

	return &meta.HeterogeneityResult{
		Q:      q,
		Df:     df,
		PValue: pValue,
		I2:     i2,
	}, nil
}

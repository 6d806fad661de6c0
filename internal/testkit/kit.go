// Package testkit provides deterministic fixtures shared by the statistics
// test suites. Every generator is seeded, so fixture data is identical
// across runs and machines.
package testkit

import (
	"math"
	"math/rand"

	"gometa/domain/dataset"
)

// ReferenceEffects is a small meta-regression fixture with a known
// restricted-maximum-likelihood solution, used to pin estimator output.
var ReferenceEffects = []float64{-1, 0.5, 0.5, 0.5, 1, 1, 2, 10}

// ReferenceVariances pairs with ReferenceEffects.
var ReferenceVariances = []float64{1, 1, 2.4, 0.5, 1, 1, 1.2, 1.5}

// ReferenceModerator is the single moderator column for the fixture.
var ReferenceModerator = []float64{1, 1, 2, 2, 4, 4, 2.8, 2.8}

// ReferenceSampleSizes pairs with ReferenceEffects for sample-size-only
// estimation paths.
var ReferenceSampleSizes = []float64{10, 12, 15, 8, 20, 14, 16, 11}

// ReferenceDataset builds the meta-regression fixture with an intercept and
// the moderator column.
func ReferenceDataset() (*dataset.Dataset, error) {
	rows := make([][]float64, len(ReferenceModerator))
	for i, x := range ReferenceModerator {
		rows[i] = []float64{x}
	}
	return dataset.New(ReferenceEffects, ReferenceVariances,
		dataset.WithCovariates(rows, "moderator"))
}

// InterceptOnlyDataset builds the fixture restricted to an intercept model.
func InterceptOnlyDataset() (*dataset.Dataset, error) {
	return dataset.New(ReferenceEffects, ReferenceVariances)
}

// SmallDataset is a four-study intercept-only fixture whose pooled fixed
// effect works out to 0.22 by hand: inverse-variance weights 100, 50,
// 66.67 and 33.33 against effects 0.1, 0.3, 0.2 and 0.5.
func SmallDataset() (*dataset.Dataset, error) {
	return dataset.New([]float64{0.1, 0.3, 0.2, 0.5}, []float64{0.01, 0.02, 0.015, 0.03})
}

// HomogeneousDataset draws k effects from a single normal population with
// the given common variance, so the true between-study variance is zero.
func HomogeneousDataset(k int, mean, variance float64, seed int64) (*dataset.Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	y := make([]float64, k)
	v := make([]float64, k)
	sd := math.Sqrt(variance)
	for i := range y {
		y[i] = mean + sd*rng.NormFloat64()
		v[i] = variance
	}
	return dataset.New(y, v)
}

// HeterogeneousDataset draws k effects with true between-study variance tau2
// layered on top of per-study sampling variances spread around baseVariance.
func HeterogeneousDataset(k int, mean, baseVariance, tau2 float64, seed int64) (*dataset.Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	y := make([]float64, k)
	v := make([]float64, k)
	for i := range y {
		v[i] = baseVariance * (0.5 + rng.Float64())
		total := math.Sqrt(v[i] + tau2)
		y[i] = mean + total*rng.NormFloat64()
	}
	return dataset.New(y, v)
}

// SampleSizeDataset builds a fixture that carries sample sizes but no
// per-study variances, exercising the sample-size estimation paths.
func SampleSizeDataset() (*dataset.Dataset, error) {
	return dataset.New(ReferenceEffects, nil,
		dataset.WithSampleSizes(ReferenceSampleSizes))
}

// UniformPValues draws k p-values uniformly on (lo, hi) for combination
// tests. Bounds must stay inside the open unit interval.
func UniformPValues(k int, lo, hi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]float64, k)
	for i := range ps {
		ps[i] = lo + (hi-lo)*rng.Float64()
	}
	return ps
}

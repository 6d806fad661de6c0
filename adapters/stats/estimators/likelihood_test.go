package estimators

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gometa/domain/core"
	"gometa/internal/config"
	"gometa/internal/testkit"
)

func TestML_ScoreVanishesAtSolution(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	require.NoError(t, err)

	res, err := NewMaximumLikelihood(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Greater(t, res.Tau2, 0.0)

	x, y, v := ds.Design(), ds.Effects(), ds.Variances()
	score := jointScore(x, y, v, res.Beta, res.Tau2)
	for i, s := range score {
		assert.InDelta(t, 0.0, s, 1e-5, "score[%d]", i)
	}
}

func TestML_HomogeneousDataAgreesWithFixedEffect(t *testing.T) {
	ds, err := testkit.HomogeneousDataset(25, 0.4, 1.0, 11)
	require.NoError(t, err)

	ml, err := NewMaximumLikelihood(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)
	fe, err := (&WeightedLeastSquares{}).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ml.Tau2, 0.0)
	assert.InDelta(t, fe.Beta[0], ml.Beta[0], 0.5)
}

func TestREML_ReferenceSolution(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	require.NoError(t, err)

	res, err := NewRestrictedMaximumLikelihood(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)
	require.True(t, res.Converged)

	// Known solution for this fixture.
	assert.InDelta(t, -0.1066, res.Beta[0], 5e-3)
	assert.InDelta(t, 0.7700, res.Beta[1], 5e-3)
	assert.InDelta(t, 10.9499, res.Tau2, 5e-2)
}

func TestREML_ScoreVanishesAtSolution(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	require.NoError(t, err)

	res, err := NewRestrictedMaximumLikelihood(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)

	x, y, v := ds.Design(), ds.Effects(), ds.Variances()
	assert.InDelta(t, 0.0, remlScore(x, y, v, res.Tau2), 1e-5)
}

func TestREML_Tau2ExceedsML(t *testing.T) {
	// REML corrects the downward bias of ML tau2, so it should not be smaller.
	ds, err := testkit.ReferenceDataset()
	require.NoError(t, err)

	cfg := config.DefaultFitConfig()
	ml, err := NewMaximumLikelihood(cfg).Fit(context.Background(), ds)
	require.NoError(t, err)
	reml, err := NewRestrictedMaximumLikelihood(cfg).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, reml.Tau2, ml.Tau2-1e-6)
}

func TestREML_HomogeneousDataSmallTau2(t *testing.T) {
	ds, err := testkit.HomogeneousDataset(25, 0.0, 1.0, 3)
	require.NoError(t, err)

	res, err := NewRestrictedMaximumLikelihood(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Tau2, 0.0)
	assert.Less(t, res.Tau2, 2.0)
}

func TestSampleSizeML_RecoversCommonMean(t *testing.T) {
	ds, err := testkit.SampleSizeDataset()
	require.NoError(t, err)

	res, err := NewSampleSizeML(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.Greater(t, res.Sigma2, 0.0)
	assert.GreaterOrEqual(t, res.Tau2, 0.0)
	assert.False(t, res.CreatedAt.IsZero())
	require.Len(t, res.Beta, 1)

	// The pooled estimate stays in the convex hull of the observed effects.
	y := ds.Effects()
	lo, hi := y[0], y[0]
	for _, yi := range y {
		lo = math.Min(lo, yi)
		hi = math.Max(hi, yi)
	}
	assert.GreaterOrEqual(t, res.Beta[0], lo)
	assert.LessOrEqual(t, res.Beta[0], hi)
}

func TestSampleSizeML_RequiresSampleSizes(t *testing.T) {
	ds, err := testkit.InterceptOnlyDataset()
	require.NoError(t, err)
	// The fixture has variances but no sample sizes.
	_, err = NewSampleSizeML(config.DefaultFitConfig()).Fit(context.Background(), ds)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingSampleSizes)
}

func TestRobust_ReplacesOnlyTheCovariance(t *testing.T) {
	ds, err := testkit.ReferenceDataset()
	require.NoError(t, err)

	inner := &DerSimonianLaird{}
	plain, err := inner.Fit(context.Background(), ds)
	require.NoError(t, err)

	robust, err := NewRobust(&DerSimonianLaird{}).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "dersimonian_laird_robust", robust.EstimatorName)
	assert.Equal(t, plain.Beta, robust.Beta)
	assert.Equal(t, plain.Tau2, robust.Tau2)

	p := len(robust.Beta)
	for i := 0; i < p; i++ {
		assert.Greater(t, robust.CovBeta[i*p+i], 0.0, "diag[%d]", i)
		for j := 0; j < p; j++ {
			assert.InDelta(t, robust.CovBeta[j*p+i], robust.CovBeta[i*p+j], 1e-12)
		}
	}

	// The sandwich differs from the naive covariance on heterogeneous data.
	assert.NotEqual(t, plain.CovBeta, robust.CovBeta)
}

func TestRobust_SampleSizeInnerReconstructsVariances(t *testing.T) {
	ds, err := testkit.SampleSizeDataset()
	require.NoError(t, err)

	res, err := NewRobust(NewSampleSizeML(config.DefaultFitConfig())).Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, "sample_size_ml_robust", res.EstimatorName)
	assert.Greater(t, res.CovBeta[0], 0.0)
}

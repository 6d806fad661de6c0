package combine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gometa/domain/core"
	"gometa/internal/testkit"
)

func TestFisher_TwoEqualPValues(t *testing.T) {
	res, err := Fisher([]float64{0.05, 0.05})
	require.NoError(t, err)

	// -2*(ln 0.05 + ln 0.05) ~= 11.98 against chi-square with 4 df.
	assert.InDelta(t, 11.9829, res.Statistic, 1e-3)
	assert.Equal(t, NameFisher, res.Method)
	assert.Equal(t, 2, res.K)
	assert.Greater(t, res.PValue, 0.0)
	assert.Less(t, res.PValue, 0.05)
}

func TestFisher_UninformativePValues(t *testing.T) {
	res, err := Fisher([]float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	// Statistic equals its expectation 2k under the null; nothing to detect.
	assert.InDelta(t, 8*math.Ln2, res.Statistic, 1e-10)
	assert.Greater(t, res.PValue, 0.3)
}

func TestFisher_SmallPValuesBeatNullPValues(t *testing.T) {
	null := testkit.UniformPValues(10, 0.3, 0.9, 21)
	signal := testkit.UniformPValues(10, 0.001, 0.02, 21)

	resNull, err := Fisher(null)
	require.NoError(t, err)
	resSignal, err := Fisher(signal)
	require.NoError(t, err)

	assert.Greater(t, resSignal.Statistic, resNull.Statistic)
	assert.Less(t, resSignal.PValue, resNull.PValue)
	assert.Less(t, resSignal.PValue, 1e-6)
}

func TestStoufferZ_EqualScores(t *testing.T) {
	res, err := StoufferZ([]float64{1.5, 1.5, 1.5, 1.5}, nil)
	require.NoError(t, err)

	// Unweighted: Z = sum(z)/sqrt(k) = 1.5*sqrt(4) ... / sqrt(4) = 3.
	assert.InDelta(t, 3.0, res.Statistic, 1e-12)
	assert.Equal(t, NameStouffer, res.Method)
}

func TestStoufferZ_WeightsConcentrateOnLargeStudies(t *testing.T) {
	z := []float64{2.0, 0.0}

	unweighted, err := StoufferZ(z, nil)
	require.NoError(t, err)

	w, err := SampleSizeWeights([]float64{1000, 10})
	require.NoError(t, err)
	weighted, err := StoufferZ(z, w)
	require.NoError(t, err)

	// Nearly all weight on the z=2 study pushes the statistic toward 2.
	assert.Greater(t, weighted.Statistic, unweighted.Statistic)
	assert.InDelta(t, 2.0, weighted.Statistic, 0.1)
}

func TestStoufferP_RoundTripsThroughNormal(t *testing.T) {
	// A single p-value passes through unchanged.
	res, err := StoufferP([]float64{0.025}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.025, res.PValue, 1e-9)
}

func TestStoufferZ_WeightLengthMismatch(t *testing.T) {
	_, err := StoufferZ([]float64{1, 2}, []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestDegeneratePValuesRejected(t *testing.T) {
	cases := [][]float64{
		{0.5, 0},
		{0.5, 1},
		{-0.1, 0.5},
		{0.5, math.NaN()},
	}
	for _, ps := range cases {
		_, err := Fisher(ps)
		require.Error(t, err, "Fisher(%v)", ps)
		assert.ErrorIs(t, err, core.ErrDegeneratePValue)

		_, err = StoufferP(ps, nil)
		require.Error(t, err, "StoufferP(%v)", ps)
		assert.ErrorIs(t, err, core.ErrDegeneratePValue)
	}
}

func TestEmptyInputRejected(t *testing.T) {
	_, err := Fisher(nil)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
	_, err = StoufferP(nil, nil)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
	_, err = StoufferZ(nil, nil)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestSampleSizeWeights_RejectsNonPositive(t *testing.T) {
	_, err := SampleSizeWeights([]float64{10, -5})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNonPositiveSample)
}

// Package stan adapts an external probabilistic-programming sampler to the
// estimator contract. The core never embeds the sampler in its control flow:
// it compiles a SamplerInput, hands it across the port, and maps posterior
// summaries back into a FitResult, so everything else stays testable without
// the backend installed.
package stan

import (
	"context"
	"math"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal"
	"gometa/internal/errors"
	"gometa/ports"
)

// EstimatorName tags Bayesian fits in result records.
const EstimatorName = "stan"

// MetaRegression is the Bayesian random-effects meta-regression estimator.
// The sampled model is observation-level:
//
//	y ~ normal(theta[id] + X*beta, sigma)
//	theta ~ normal(0, tau2)
//
// with one observation per study in the common case.
type MetaRegression struct {
	Sampler ports.Sampler
	Logger  *internal.Logger
}

// New builds the adapter around a sampler backend.
func New(sampler ports.Sampler) *MetaRegression {
	return &MetaRegression{Sampler: sampler, Logger: internal.DefaultLogger}
}

// Name implements ports.Estimator.
func (e *MetaRegression) Name() string { return EstimatorName }

// Fit implements ports.Estimator.
func (e *MetaRegression) Fit(ctx context.Context, ds *dataset.Dataset) (*meta.FitResult, error) {
	if e.Sampler == nil {
		return nil, errors.SamplerError("sampler backend is not configured", core.ErrSamplerUnavailable)
	}
	if !ds.HasVariances() {
		return nil, errors.ValidationError("Bayesian fit requires sampling variances", core.ErrMissingVariances)
	}

	input := compileInput(ds)
	runID := core.NewRunID()
	e.Logger.Debug("stan run %s: k=%d c=%d dataset=%s", runID, input.K, input.C, ds.Fingerprint())

	out, err := e.Sampler.Sample(ctx, input)
	if err != nil {
		return nil, errors.SamplerError("sampling failed", err)
	}
	if len(out.Beta) != input.C {
		return nil, errors.SamplerError("sampler returned wrong number of coefficients", nil)
	}

	p := input.C
	beta := make([]float64, p)
	cov := make([]float64, p*p)
	for j, post := range out.Beta {
		beta[j] = post.Mean
		cov[j*p+j] = post.SD * post.SD
	}

	return &meta.FitResult{
		EstimatorName: EstimatorName,
		RunID:         runID,
		CreatedAt:     core.Now(),
		Beta:          beta,
		CovBeta:       cov,
		Names:         ds.CovariateNames(),
		Tau2:          math.Max(0, out.Tau2.Mean),
		RandomEffects: true,
		Converged:     true,
	}, nil
}

// compileInput maps a dataset onto the sampler's data block. Sigma carries
// sampling standard deviations, i.e. sqrt(v).
func compileInput(ds *dataset.Dataset) ports.SamplerInput {
	k, p := ds.K(), ds.P()
	v := ds.Variances()

	sigma := make([]float64, k)
	groups := make([]int, k)
	for i := 0; i < k; i++ {
		sigma[i] = math.Sqrt(v[i])
		groups[i] = i + 1
	}

	x := ds.Design()
	rows := make([][]float64, k)
	for i := 0; i < k; i++ {
		rows[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			rows[i][j] = x.At(i, j)
		}
	}

	return ports.SamplerInput{
		N:      k,
		K:      k,
		C:      p,
		Y:      ds.Effects(),
		Sigma:  sigma,
		X:      rows,
		Groups: groups,
	}
}

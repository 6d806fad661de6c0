package inference

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"gometa/domain/core"
	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/internal"
	"gometa/internal/config"
	"gometa/ports"
)

// PermutationTest builds an empirical null distribution for one regression
// coefficient by refitting the same estimator variant against reshuffled
// inputs. Intercept-only models flip effect signs; meta-regressions permute
// the covariate rows relative to the fixed effects and variances. When the
// full permutation group is no larger than the requested count, it is
// enumerated exhaustively instead of sampled.
type PermutationTest struct {
	Estimator ports.Estimator
	RNG       ports.RNG
	Config    config.PermutationConfig
	Logger    *internal.Logger
}

// NewPermutationTest wires a permutation test around an estimator variant.
func NewPermutationTest(est ports.Estimator, rng ports.RNG, cfg config.PermutationConfig) *PermutationTest {
	return &PermutationTest{
		Estimator: est,
		RNG:       rng,
		Config:    cfg,
		Logger:    internal.DefaultLogger,
	}
}

// Run executes the permutation test for the coefficient at index coef.
func (t *PermutationTest) Run(ctx context.Context, ds *dataset.Dataset, coef int) (*meta.PermutationResult, error) {
	if err := t.Config.Validate(); err != nil {
		return nil, err
	}

	observed, err := t.Estimator.Fit(ctx, ds)
	if err != nil {
		return nil, err
	}
	if coef < 0 || coef >= len(observed.Beta) {
		return nil, core.NewValidationError(core.ErrShapeMismatch, "coef", "coefficient index out of range")
	}
	obs := observed.Beta[coef]

	runID := core.NewRunID()
	signFlip := ds.P() == 1
	total, enumerable := groupSize(ds.K(), signFlip, t.Config.NPermutations)
	exhaustive := enumerable && total <= t.Config.NPermutations

	t.Logger.Debug("permutation run %s: estimator=%s dataset=%s exhaustive=%v",
		runID, t.Estimator.Name(), ds.Fingerprint(), exhaustive)

	var null []float64
	if exhaustive {
		null, err = t.runExhaustive(ctx, ds, coef, signFlip, total)
	} else {
		null, err = t.runSampled(ctx, ds, coef, signFlip)
	}
	if err != nil {
		return nil, err
	}

	absObs := math.Abs(obs)
	extreme := 0
	for _, b := range null {
		if math.Abs(b) >= absObs {
			extreme++
		}
	}

	// Sampled runs use the +1 correction so the p-value can never be zero;
	// exhaustive runs include the identity rearrangement, which guarantees
	// extreme >= 1 without it.
	var p float64
	if exhaustive {
		p = float64(extreme) / float64(len(null))
	} else {
		p = float64(1+extreme) / float64(1+len(null))
	}

	summary, err := summarizeNull(null)
	if err != nil {
		return nil, err
	}

	name := ""
	if coef < len(observed.Names) {
		name = observed.Names[coef]
	}
	return &meta.PermutationResult{
		RunID:             runID,
		CreatedAt:         core.Now(),
		Coefficient:       name,
		ObservedStatistic: obs,
		PValue:            p,
		NPermutations:     len(null),
		Exhaustive:        exhaustive,
		NullDistribution:  null,
		NullSummary:       summary,
	}, nil
}

// groupSize returns the size of the full permutation group (2^k for sign
// flips, k! for row permutations) and whether it is small enough to count
// without overflowing past the requested budget.
func groupSize(k int, signFlip bool, budget int) (int, bool) {
	total := 1
	if signFlip {
		for i := 0; i < k; i++ {
			total *= 2
			if total > budget {
				return total, false
			}
		}
		return total, true
	}
	for i := 2; i <= k; i++ {
		total *= i
		if total > budget {
			return total, false
		}
	}
	return total, true
}

func (t *PermutationTest) runExhaustive(ctx context.Context, ds *dataset.Dataset, coef int, signFlip bool, total int) ([]float64, error) {
	variants := make([]*dataset.Dataset, 0, total)
	if signFlip {
		k := ds.K()
		for maskBits := 0; maskBits < total; maskBits++ {
			mask := make([]bool, k)
			for i := 0; i < k; i++ {
				mask[i] = maskBits&(1<<i) != 0
			}
			variants = append(variants, ds.FlipSigns(mask))
		}
	} else {
		forEachPermutation(ds.K(), func(perm []int) {
			variants = append(variants, ds.PermuteCovariates(perm))
		})
	}
	return t.fitAll(ctx, variants, coef)
}

func (t *PermutationTest) runSampled(ctx context.Context, ds *dataset.Dataset, coef int, signFlip bool) ([]float64, error) {
	n := t.Config.NPermutations
	k := ds.K()
	workers := t.workers()

	variants := make([]*dataset.Dataset, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := t.stream(w)
			for i := w; i < n; i += workers {
				if signFlip {
					mask := make([]bool, k)
					for j := range mask {
						mask[j] = rng.Intn(2) == 1
					}
					variants[i] = ds.FlipSigns(mask)
				} else {
					variants[i] = ds.PermuteCovariates(rng.Perm(k))
				}
			}
		}(w)
	}
	wg.Wait()

	return t.fitAll(ctx, variants, coef)
}

// fitAll refits the estimator against every derived dataset, fanning out
// across the configured workers.
func (t *PermutationTest) fitAll(ctx context.Context, variants []*dataset.Dataset, coef int) ([]float64, error) {
	null := make([]float64, len(variants))
	var nonConverged int64
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers())
	for i, variant := range variants {
		i, variant := i, variant
		g.Go(func() error {
			res, err := t.Estimator.Fit(ctx, variant)
			if err != nil {
				return err
			}
			if !res.Converged {
				mu.Lock()
				nonConverged++
				mu.Unlock()
			}
			null[i] = res.Beta[coef]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if nonConverged > 0 {
		t.Logger.Warn("permutation: %d of %d refits did not converge", nonConverged, len(variants))
	}
	return null, nil
}

func (t *PermutationTest) workers() int {
	if t.Config.Workers > 0 {
		return t.Config.Workers
	}
	return runtime.NumCPU()
}

// stream keys worker streams by a stable name, never by the run ID, so the
// same seed reproduces the same null distribution across runs.
func (t *PermutationTest) stream(worker int) *rand.Rand {
	name := fmt.Sprintf("permutation/%d", worker)
	if t.RNG != nil {
		return t.RNG.SeededStream(name, t.Config.Seed)
	}
	return rand.New(rand.NewSource(core.DeriveSeed(name, t.Config.Seed)))
}

// forEachPermutation enumerates all permutations of 0..k-1 via Heap's
// algorithm, invoking fn with a copy the callee may retain.
func forEachPermutation(k int, fn func(perm []int)) {
	perm := make([]int, k)
	for i := range perm {
		perm[i] = i
	}
	var heaps func(n int)
	heaps = func(n int) {
		if n <= 1 {
			fn(append([]int(nil), perm...))
			return
		}
		for i := 0; i < n-1; i++ {
			heaps(n - 1)
			if n%2 == 0 {
				perm[i], perm[n-1] = perm[n-1], perm[i]
			} else {
				perm[0], perm[n-1] = perm[n-1], perm[0]
			}
		}
		heaps(n - 1)
	}
	heaps(k)
}

func summarizeNull(null []float64) (meta.NullSummary, error) {
	mean, err := mstats.Mean(null)
	if err != nil {
		return meta.NullSummary{}, err
	}
	sd, err := mstats.StandardDeviationSample(null)
	if err != nil {
		sd = 0 // single-element null distribution
	}
	min, _ := mstats.Min(null)
	max, _ := mstats.Max(null)
	p95, _ := mstats.Percentile(null, 95)
	p99, _ := mstats.Percentile(null, 99)
	return meta.NullSummary{
		Mean:         mean,
		StdDev:       sd,
		Min:          min,
		Max:          max,
		Percentile95: p95,
		Percentile99: p99,
	}, nil
}

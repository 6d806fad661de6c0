package estimators

import (
	"context"
	"runtime"
	"sync"

	"gometa/domain/dataset"
	"gometa/domain/meta"
	"gometa/ports"

	"golang.org/x/sync/errgroup"
)

// RunSweep fits several estimator variants against the same dataset in
// parallel. Each fit operates on its own optimization state, so no
// coordination beyond the worker limit is needed. The first validation or
// design error aborts the sweep.
func RunSweep(ctx context.Context, ds *dataset.Dataset, ests []ports.Estimator, workers int) (map[string]*meta.FitResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	results := make(map[string]*meta.FitResult, len(ests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, est := range ests {
		est := est
		g.Go(func() error {
			res, err := est.Fit(ctx, ds)
			if err != nil {
				return err
			}
			mu.Lock()
			results[est.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

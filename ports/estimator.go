package ports

import (
	"context"

	"gometa/domain/dataset"
	"gometa/domain/meta"
)

// Estimator is the uniform contract shared by every fitting strategy.
// Fit never mutates the dataset; non-convergence of an iterative variant is
// reported through FitResult.Converged, not through the error return. Errors
// are reserved for malformed input and structurally unfittable designs.
type Estimator interface {
	Name() string
	Fit(ctx context.Context, ds *dataset.Dataset) (*meta.FitResult, error)
}

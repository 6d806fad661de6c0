package estimators

import (
	"fmt"

	"gometa/internal/config"
	"gometa/ports"
)

// ByName resolves an estimator variant from its tag. The variant set is
// closed: new strategies are added here, not by subclassing.
func ByName(name string, cfg config.FitConfig) (ports.Estimator, error) {
	switch name {
	case NameWLS:
		return &WeightedLeastSquares{}, nil
	case NameDL:
		return &DerSimonianLaird{}, nil
	case NameHedges:
		return &Hedges{}, nil
	case NameML:
		return NewMaximumLikelihood(cfg), nil
	case NameREML:
		return NewRestrictedMaximumLikelihood(cfg), nil
	case NameSampleSizeML:
		return NewSampleSizeML(cfg), nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
}

// VarianceBased returns the estimators applicable to datasets with known
// sampling variances, in a stable order.
func VarianceBased(cfg config.FitConfig) []ports.Estimator {
	return []ports.Estimator{
		&WeightedLeastSquares{},
		&DerSimonianLaird{},
		&Hedges{},
		NewMaximumLikelihood(cfg),
		NewRestrictedMaximumLikelihood(cfg),
	}
}

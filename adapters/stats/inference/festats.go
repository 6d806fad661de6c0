package inference

import (
	"gometa/domain/meta"
	"gometa/internal/errors"
)

// FixedEffectStats derives per-coefficient z-scores, two-sided p-values and
// Wald confidence intervals of coverage 1-alpha from a fitted result.
func FixedEffectStats(fit *meta.FitResult, alpha float64) ([]meta.CoefficientStat, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.ConfigInvalid("alpha must lie in (0, 1)")
	}
	return fit.Summary(alpha), nil
}

package ports

import "context"

// SamplerInput carries the design matrix, effects and sampling standard
// deviations to an external probabilistic-programming backend. Groups maps
// each observation to a study (1-based); for one observation per study it is
// simply 1..K.
type SamplerInput struct {
	N      int         `json:"n"`
	K      int         `json:"k"`
	C      int         `json:"c"`
	Y      []float64   `json:"y"`
	Sigma  []float64   `json:"sigma"` // per-observation sampling standard deviations
	X      [][]float64 `json:"x"`     // K rows, C columns
	Groups []int       `json:"groups"`
}

// PosteriorSummary is the marginal posterior of one parameter.
type PosteriorSummary struct {
	Mean     float64 `json:"mean"`
	SD       float64 `json:"sd"`
	HPDLower float64 `json:"hpd_lower"`
	HPDUpper float64 `json:"hpd_upper"`
}

// SamplerOutput carries posterior summaries back into the core.
type SamplerOutput struct {
	Beta []PosteriorSummary `json:"beta"`
	Tau2 PosteriorSummary   `json:"tau2"`
}

// Sampler is the narrow adapter interface behind which the Bayesian backend
// lives. The core compiles inputs and interprets summaries; it never embeds
// the sampler in its own control flow.
type Sampler interface {
	Sample(ctx context.Context, input SamplerInput) (*SamplerOutput, error)
}

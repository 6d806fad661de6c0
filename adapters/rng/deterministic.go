// Package rng provides the deterministic random-stream adapter used by
// permutation inference: the same stream name and seed always yield the
// same draws, so resampling results are reproducible across machines.
package rng

import (
	"math/rand"

	"gometa/domain/core"
	"gometa/ports"
)

// Deterministic derives independent seeded streams by hashing the stream
// name together with a base seed.
type Deterministic struct{}

// New creates the deterministic RNG adapter.
func New() *Deterministic {
	return &Deterministic{}
}

// SeededStream implements ports.RNG.
func (d *Deterministic) SeededStream(name string, seed int64) *rand.Rand {
	return rand.New(rand.NewSource(core.DeriveSeed(name, seed)))
}

var _ ports.RNG = (*Deterministic)(nil)

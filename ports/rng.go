package ports

import "math/rand"

// RNG provides seeded random number generation for deterministic operations.
type RNG interface {
	// SeededStream creates a deterministic generator for a named operation.
	// The same name and seed always yield the same draw sequence.
	SeededStream(name string, seed int64) *rand.Rand
}

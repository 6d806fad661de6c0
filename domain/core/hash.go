package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Fingerprint is a content hash of a dataset's numeric inputs, used to
// correlate log lines and cached results across runs.
type Fingerprint Hash

func (f Fingerprint) String() string { return Hash(f).String() }

// ComputeFingerprint hashes named float64 columns in a stable order.
func ComputeFingerprint(columns map[string][]float64) Fingerprint {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, 64)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		buf = buf[:0]
		for _, v := range columns[key] {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
		b.Write(buf)
	}
	return Fingerprint(NewHash([]byte(b.String())))
}

// DeriveSeed maps a stream name and base seed onto a stable RNG seed, so
// parallel workers draw from independent but reproducible streams.
func DeriveSeed(name string, baseSeed int64) int64 {
	payload := binary.BigEndian.AppendUint64([]byte(name), uint64(baseSeed))
	sum := sha256.Sum256(payload)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

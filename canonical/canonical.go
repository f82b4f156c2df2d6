// Package canonical derives a deterministic, content-addressable identity
// from raw embedding vectors.
//
// Embedding providers are not bit-stable across versions, hardware, and batch
// boundaries: the same input can produce vectors that differ by floating-point
// noise. Canonicalization quantizes each component to a fixed epsilon before
// hashing, so two vectors that differ only below that epsilon share one
// identity hash.
package canonical

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates a vector whose length does not match the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options contains configuration options for the canonicalizer.
type Options struct {
	// Epsilon is the quantization step. Components are rounded to the nearest
	// multiple of Epsilon before hashing. Must be > 0.
	Epsilon float64
}

// DefaultOptions contains the default configuration options for the canonicalizer.
var DefaultOptions = Options{
	Epsilon: 1e-6,
}

// Canonicalizer normalizes and hashes raw embedding vectors.
type Canonicalizer struct {
	dimension int
	opts      Options
}

// New creates a new canonicalizer for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Canonicalizer, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if opts.Epsilon <= 0 {
		return nil, fmt.Errorf("invalid epsilon: %g", opts.Epsilon)
	}

	return &Canonicalizer{
		dimension: dimension,
		opts:      opts,
	}, nil
}

// Dimension returns the configured vector dimension.
func (c *Canonicalizer) Dimension() int {
	return c.dimension
}

// Canonicalize quantizes v and computes its identity hash.
//
// The returned vector is a fresh slice; v is never mutated. Canonicalization
// is idempotent: re-canonicalizing an already canonical vector yields an
// equal vector and an identical hash.
func (c *Canonicalizer) Canonicalize(v []float32) ([]float32, string, error) {
	if len(v) != c.dimension {
		return nil, "", &ErrDimensionMismatch{Expected: c.dimension, Actual: len(v)}
	}

	canonical := make([]float32, len(v))
	for i, x := range v {
		canonical[i] = quantize(x, c.opts.Epsilon)
	}

	return canonical, Hash(canonical), nil
}

// Hash computes the identity digest of an already-canonical vector: the
// lowercase sha256 hex of its little-endian byte representation.
func Hash(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// quantize rounds x to the nearest multiple of eps in float64 precision
// before narrowing back to float32.
func quantize(x float32, eps float64) float32 {
	return float32(math.Round(float64(x)/eps) * eps)
}

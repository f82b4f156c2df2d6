// Package distance provides vector distance metrics and score normalization.
//
// Raw metric values are not directly comparable across metrics: cosine and
// dot product grow with similarity while Euclidean distance shrinks with it.
// Similarity maps every metric onto a single descending-is-worse scale so
// callers can apply one minimum-score threshold regardless of metric.
package distance

import (
	"fmt"
	"slices"

	"github.com/bitharbor/mediadex/internal/math32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := math32.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / math32.Sqrt(norm2)
	math32.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricL2
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricL2:
		return "L2"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for raw distance calculation.
type Func func(a, b []float32) float32

// Provider returns the raw distance function for the given metric.
//
// Cosine is implemented as dot product over L2-normalized vectors; callers
// are responsible for normalizing stored vectors and queries.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine, MetricDot:
		return Dot, nil
	case MetricL2:
		return SquaredL2, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Similarity converts a raw metric value into a bounded similarity score.
//
// Cosine and dot product are already similarities and pass through.
// Squared Euclidean distance d maps to 1/(1+d), which is monotonically
// decreasing in d and bounded to (0, 1].
func Similarity(m Metric, raw float32) float32 {
	switch m {
	case MetricL2:
		return 1 / (1 + raw)
	default:
		return raw
	}
}

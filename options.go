package mediadex

import (
	"math"

	"github.com/bitharbor/mediadex/canonical"
	"github.com/bitharbor/mediadex/distance"
	"github.com/bitharbor/mediadex/idmap"
	"github.com/bitharbor/mediadex/vectorlog"
)

// NoMinScore disables score filtering.
var NoMinScore = float32(math.Inf(-1))

// Options contains configuration options for the engine.
type Options struct {
	// Dimension is the fixed embedding dimensionality. Required.
	Dimension int

	// Metric selects the similarity metric.
	Metric distance.Metric

	// Epsilon is the canonicalization quantization step.
	Epsilon float64

	// MinScore is the default score floor for searches. Defaults to
	// NoMinScore, keeping every result.
	MinScore float32

	// YearTolerance widens catalog year matching to |candidate - record|
	// <= tolerance. Zero keeps strict exact-year matching.
	YearTolerance int

	// OverfetchFactor controls how many raw hits a search requests per
	// returned result, leaving room for unmapped rows and duplicate media.
	OverfetchFactor int

	// Logger for structured logging. Defaults to a no-op logger.
	Logger *Logger

	// IdentityMap is the identity map backend. Defaults to an in-memory map;
	// pass an idmap.SQLite for durability.
	IdentityMap idmap.Map

	// VectorLog is the vector storage backend. Defaults to an in-memory log;
	// pass a vectorlog.File for durability.
	VectorLog vectorlog.Store
}

// DefaultOptions contains the default configuration options for the engine.
var DefaultOptions = Options{
	Dimension:       0,
	Metric:          distance.MetricCosine,
	Epsilon:         canonical.DefaultOptions.Epsilon,
	MinScore:        NoMinScore,
	YearTolerance:   0,
	OverfetchFactor: 2,
}

// SearchOptions contains per-call configuration options for Search and
// SearchVector.
type SearchOptions struct {
	// MinScore overrides the engine's default score floor.
	MinScore float32
}

// MatchOptions contains per-call configuration options for Match.
type MatchOptions struct {
	// Limit caps the number of returned matches. Zero or negative means
	// unlimited.
	Limit int

	// YearFilter narrows the canonical records to a single release year
	// before matching.
	YearFilter *int
}

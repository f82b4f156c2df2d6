// Package vindex implements the append-only flat vector index.
//
// Rows are immutable once committed: appending is the only write, row ids are
// storage offsets, and a vector is never updated or deleted. Appends are
// idempotent on the canonical vector hash, so re-ingesting the same content
// returns the existing row instead of growing the index.
package vindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bitharbor/mediadex/canonical"
	"github.com/bitharbor/mediadex/distance"
	"github.com/bitharbor/mediadex/idmap"
	"github.com/bitharbor/mediadex/internal/queue"
	"github.com/bitharbor/mediadex/vectorlog"
)

// ErrInvalidK is returned when a search requests a non-positive result count.
var ErrInvalidK = errors.New("invalid k: must be greater than 0")

// Hit is a single search result: a row id and its normalized similarity.
type Hit struct {
	RowID uint32
	Score float32
}

// Options contains configuration options for the index.
type Options struct {
	// Metric selects the similarity metric. Cosine stores and queries
	// L2-normalized vectors.
	Metric distance.Metric

	// Epsilon is the canonicalization quantization step.
	Epsilon float64
}

// DefaultOptions contains the default configuration options for the index.
var DefaultOptions = Options{
	Metric:  distance.MetricCosine,
	Epsilon: canonical.DefaultOptions.Epsilon,
}

// indexState holds the immutable search state for lock-free reads.
type indexState struct {
	vectors [][]float32
}

// Index is an append-only flat vector index over a vector log and an
// identity map. It uses a copy-on-write pattern: searches read an immutable
// snapshot and never observe a partially committed row.
type Index struct {
	opts    Options
	canon   *canonical.Canonicalizer
	distFn  distance.Func
	log     vectorlog.Store
	ids     idmap.Map
	state   atomic.Pointer[indexState]
	writeMu sync.Mutex // Serializes writes only
}

// New creates a new index over log and ids.
func New(log vectorlog.Store, ids idmap.Map, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	canon, err := canonical.New(log.Dimension(), func(o *canonical.Options) {
		o.Epsilon = opts.Epsilon
	})
	if err != nil {
		return nil, err
	}

	distFn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		opts:   opts,
		canon:  canon,
		distFn: distFn,
		log:    log,
		ids:    ids,
	}
	idx.state.Store(&indexState{})

	return idx, nil
}

// Dimension returns the fixed vector dimensionality of the index.
func (idx *Index) Dimension() int {
	return idx.canon.Dimension()
}

// Len returns the number of committed rows.
func (idx *Index) Len() int {
	return len(idx.state.Load().vectors)
}

// prepare normalizes (for cosine) and canonicalizes v.
func (idx *Index) prepare(v []float32) ([]float32, string, error) {
	if idx.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(v)
		if !ok {
			return nil, "", errors.New("cannot normalize zero vector")
		}
		v = norm
	}
	return idx.canon.Canonicalize(v)
}

// Append commits v under mediaID and returns its row id.
//
// The vector is canonicalized first; if its hash is already mapped, the
// existing row id is returned with created false and storage stays untouched.
func (idx *Index) Append(ctx context.Context, v []float32, mediaID string) (uint32, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	vec, hash, err := idx.prepare(v)
	if err != nil {
		return 0, false, err
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	rowID, ok, err := idx.ids.RowByHash(ctx, hash)
	if err != nil {
		return 0, false, fmt.Errorf("lookup vector hash: %w", err)
	}
	if ok {
		return rowID, false, nil
	}

	rowID, err = idx.log.Append(ctx, vec)
	if err != nil {
		return 0, false, fmt.Errorf("append vector: %w", err)
	}

	// An entry failure leaves the row committed but unmapped; searches skip
	// unmapped rows, so the index stays consistent.
	if err := idx.ids.Put(ctx, idmap.Entry{RowID: rowID, VectorHash: hash, MediaID: mediaID}); err != nil {
		return 0, false, fmt.Errorf("map row %d: %w", rowID, err)
	}

	oldState := idx.state.Load()
	newState := &indexState{vectors: make([][]float32, len(oldState.vectors), len(oldState.vectors)+1)}
	copy(newState.vectors, oldState.vectors)
	newState.vectors = append(newState.vectors, vec)
	idx.state.Store(newState)

	return rowID, true, nil
}

// Load rebuilds the search state by replaying the vector log. Row ids are
// storage offsets, so a restart never renumbers.
func (idx *Index) Load(ctx context.Context) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	vectors := make([][]float32, 0, idx.log.Len())
	err := idx.log.Replay(ctx, func(offset uint32, v []float32) error {
		if offset != uint32(len(vectors)) {
			return fmt.Errorf("non-dense replay offset %d, want %d", offset, len(vectors))
		}
		vectors = append(vectors, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay vector log: %w", err)
	}

	// The identity map must not reference rows beyond the log tail. Unmapped
	// tail rows are tolerated; searches skip them.
	next, err := idx.ids.NextRowID(ctx)
	if err != nil {
		return fmt.Errorf("check identity map: %w", err)
	}
	if int(next) > len(vectors) {
		return fmt.Errorf("identity map references row %d beyond log length %d", next-1, len(vectors))
	}

	idx.state.Store(&indexState{vectors: vectors})
	return nil
}

// Search returns the top k rows by normalized similarity, descending, with
// ties broken by ascending row id. An empty index yields an empty slice.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != idx.canon.Dimension() {
		return nil, &canonical.ErrDimensionMismatch{Expected: idx.canon.Dimension(), Actual: len(query)}
	}

	st := idx.state.Load()
	if len(st.vectors) == 0 {
		return []Hit{}, nil
	}

	q := query
	if idx.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(query)
		if !ok {
			return nil, errors.New("cannot normalize zero query")
		}
		q = norm
	}

	actualK := min(k, len(st.vectors))

	// Min heap of the best k seen so far; the top is the worst kept hit.
	topCandidates := queue.NewMin(actualK)
	for rowID, vec := range st.vectors {
		score := distance.Similarity(idx.opts.Metric, idx.distFn(q, vec))
		item := queue.Item{Node: uint32(rowID), Score: score}

		if topCandidates.Len() < actualK {
			topCandidates.Push(item)
			continue
		}

		worst, _ := topCandidates.Top()
		if score > worst.Score || (score == worst.Score && item.Node < worst.Node) {
			topCandidates.Pop()
			topCandidates.Push(item)
		}
	}

	hits := make([]Hit, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := topCandidates.Pop()
		hits[i] = Hit{RowID: item.Node, Score: item.Score}
	}
	return hits, nil
}

// Package searcher resolves raw index hits into media identities.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/bitharbor/mediadex/idmap"
	"github.com/bitharbor/mediadex/vindex"
)

// Result is a resolved search hit.
type Result struct {
	MediaID string
	RowID   uint32
	Score   float32
}

// Options contains configuration options for the resolver.
type Options struct {
	// Logger receives diagnostics such as skipped unmapped rows.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the resolver.
var DefaultOptions = Options{
	Logger: slog.New(slog.DiscardHandler),
}

// ResolveOptions contains per-call configuration options for Resolve.
type ResolveOptions struct {
	// MinScore drops results scoring strictly below it.
	MinScore float32

	// Limit truncates the result list. Zero or negative means no limit.
	Limit int
}

// DefaultResolveOptions contains the default per-call configuration options.
var DefaultResolveOptions = ResolveOptions{
	MinScore: float32(math.Inf(-1)),
	Limit:    0,
}

// Resolver maps index hits to media ids through the identity map.
type Resolver struct {
	ids  idmap.Map
	opts Options
}

// New creates a new resolver over ids.
func New(ids idmap.Map, optFns ...func(o *Options)) *Resolver {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Resolver{
		ids:  ids,
		opts: opts,
	}
}

// Resolve turns hits into results.
//
// Media ids are looked up in one batch. Rows without a mapping are skipped
// silently (logged at debug level, never surfaced as an error). When several
// hits resolve to the same media id, only the best-ranked one survives.
// Descending score order is preserved throughout.
func (r *Resolver) Resolve(ctx context.Context, hits []vindex.Hit, optFns ...func(o *ResolveOptions)) ([]Result, error) {
	opts := DefaultResolveOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	results := make([]Result, 0, len(hits))
	if len(hits) == 0 {
		return results, nil
	}

	rowIDs := make([]uint32, len(hits))
	for i, hit := range hits {
		rowIDs[i] = hit.RowID
	}

	mediaIDs, err := r.ids.MediaIDs(ctx, rowIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve media ids: %w", err)
	}

	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		mediaID, ok := mediaIDs[hit.RowID]
		if !ok {
			r.opts.Logger.DebugContext(ctx, "skipping unmapped row", slog.Any("row_id", hit.RowID))
			continue
		}
		if _, dup := seen[mediaID]; dup {
			continue
		}
		if hit.Score < opts.MinScore {
			continue
		}

		seen[mediaID] = struct{}{}
		results = append(results, Result{
			MediaID: mediaID,
			RowID:   hit.RowID,
			Score:   hit.Score,
		})

		if opts.Limit > 0 && len(results) == opts.Limit {
			break
		}
	}

	return results, nil
}

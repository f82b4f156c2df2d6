package mediadex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bitharbor/mediadex/catalog"
	"github.com/bitharbor/mediadex/idmap"
	"github.com/bitharbor/mediadex/provider"
	"github.com/bitharbor/mediadex/registry"
	"github.com/bitharbor/mediadex/searcher"
	"github.com/bitharbor/mediadex/vectorlog"
	"github.com/bitharbor/mediadex/vindex"
)

// Engine is the embedded media identity and catalog matching engine.
//
// All collaborators are injected at construction; the engine starts no
// background goroutines and is safe for concurrent use.
type Engine struct {
	opts      Options
	embedding provider.Embedding
	metadata  provider.MetadataSource
	archive   provider.ArchiveSource

	index    *vindex.Index
	resolver *searcher.Resolver
	matcher  *catalog.Matcher
	registry *registry.Registry
	ids      idmap.Map
	log      vectorlog.Store
	logger   *Logger
}

// IngestItem is one text-to-embedding ingestion request.
type IngestItem struct {
	Text    string
	MediaID string
}

// New creates a new engine around the given providers.
//
// Options.Dimension is required. The metadata and archive providers may be
// nil if Match is never called; the embedding provider may be nil if only
// vector-based operations are used.
func New(embedding provider.Embedding, metadata provider.MetadataSource, archive provider.ArchiveSource, optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}
	if opts.OverfetchFactor < 1 {
		opts.OverfetchFactor = 1
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	log := opts.VectorLog
	if log == nil {
		log = vectorlog.NewMemory(opts.Dimension)
	}
	if log.Dimension() != opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: opts.Dimension, Actual: log.Dimension()}
	}

	ids := opts.IdentityMap
	if ids == nil {
		ids = idmap.NewMemory()
	}

	index, err := vindex.New(log, ids, func(o *vindex.Options) {
		o.Metric = opts.Metric
		o.Epsilon = opts.Epsilon
	})
	if err != nil {
		return nil, err
	}

	slogger := opts.Logger.Logger

	return &Engine{
		opts:      opts,
		embedding: embedding,
		metadata:  metadata,
		archive:   archive,
		index:     index,
		resolver: searcher.New(ids, func(o *searcher.Options) {
			o.Logger = slogger
		}),
		matcher: catalog.New(func(o *catalog.Options) {
			o.YearTolerance = opts.YearTolerance
			o.Logger = slogger
		}),
		registry: registry.New(),
		ids:      ids,
		log:      log,
		logger:   opts.Logger,
	}, nil
}

// Load replays the vector log into the search state. Call it once after
// construction when the engine sits on durable storage.
func (e *Engine) Load(ctx context.Context) error {
	err := e.index.Load(ctx)
	e.logger.LogRecovery(ctx, e.index.Len(), err)
	return err
}

// Close releases the engine's storage backends.
func (e *Engine) Close() error {
	return errors.Join(e.log.Close(), e.ids.Close())
}

// Len returns the number of indexed rows.
func (e *Engine) Len() int {
	return e.index.Len()
}

// Ingest commits vector under mediaID and returns its row id. Ingesting a
// vector whose canonical hash is already known returns the existing row id
// without touching storage.
func (e *Engine) Ingest(ctx context.Context, vector []float32, mediaID string) (uint32, error) {
	rowID, created, err := e.index.Append(ctx, vector, mediaID)
	e.logger.LogIngest(ctx, mediaID, rowID, created, err)
	if err != nil {
		return 0, translateError(err)
	}
	return rowID, nil
}

// IngestText embeds text and ingests the resulting vector. Identity always
// comes from local canonicalization; the provider's own hash is ignored.
func (e *Engine) IngestText(ctx context.Context, text, mediaID string) (uint32, error) {
	result, err := e.embedding.Encode(ctx, text)
	if err != nil {
		return 0, &provider.UpstreamError{Provider: "embedding", Err: err}
	}
	return e.Ingest(ctx, result.Vector, mediaID)
}

// IngestBatch embeds and ingests items, returning row ids in input order.
// Encoding fans out to the provider in one batch; appends stay serialized so
// row ids remain dense and deterministic.
func (e *Engine) IngestBatch(ctx context.Context, items []IngestItem) ([]uint32, error) {
	if len(items) == 0 {
		return []uint32{}, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	results, err := e.embedding.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: "embedding", Err: err}
	}
	if len(results) != len(items) {
		return nil, &provider.UpstreamError{
			Provider: "embedding",
			Err:      fmt.Errorf("batch returned %d results for %d texts", len(results), len(items)),
		}
	}

	rowIDs := make([]uint32, len(items))
	for i, item := range items {
		rowID, err := e.Ingest(ctx, results[i].Vector, item.MediaID)
		if err != nil {
			return nil, err
		}
		rowIDs[i] = rowID
	}
	return rowIDs, nil
}

// Search embeds query and returns up to k media results, best first. A
// blank query short-circuits to an empty result without touching the
// embedding provider or the index.
func (e *Engine) Search(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) ([]searcher.Result, error) {
	if strings.TrimSpace(query) == "" {
		return []searcher.Result{}, nil
	}

	result, err := e.embedding.Encode(ctx, query)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: "embedding", Err: err}
	}

	return e.SearchVector(ctx, result.Vector, k, optFns...)
}

// SearchVector returns up to k media results for a query vector, best
// first. The underlying index is overfetched so that unmapped rows and
// duplicate media never shrink the result below k when enough distinct
// media exist.
func (e *Engine) SearchVector(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) ([]searcher.Result, error) {
	opts := SearchOptions{MinScore: e.opts.MinScore}

	for _, fn := range optFns {
		fn(&opts)
	}

	if k <= 0 {
		return nil, ErrInvalidK
	}

	hits, err := e.index.Search(ctx, query, k*e.opts.OverfetchFactor)
	if err != nil {
		e.logger.LogSearch(ctx, k, 0, err)
		return nil, translateError(err)
	}

	results, err := e.resolver.Resolve(ctx, hits, func(o *searcher.ResolveOptions) {
		o.MinScore = opts.MinScore
		o.Limit = k
	})
	e.logger.LogSearch(ctx, k, len(results), err)
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// Match queries the metadata and archive providers and reconciles their
// results. Every returned match is registered, so its MatchKey resolves via
// ResolveMatch for the rest of the process lifetime.
func (e *Engine) Match(ctx context.Context, query string, optFns ...func(o *MatchOptions)) (catalog.Response, error) {
	var opts MatchOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	records, err := e.metadata.Search(ctx, query)
	if err != nil {
		return catalog.Response{}, &provider.UpstreamError{Provider: "metadata", Err: err}
	}

	if opts.YearFilter != nil {
		// The provider may hand out a cached slice, so never filter in place.
		filtered := make([]catalog.CanonicalRecord, 0, len(records))
		for _, record := range records {
			if record.Year == *opts.YearFilter {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	candidates, err := e.archive.Search(ctx, query, provider.SearchOptions{})
	if err != nil {
		return catalog.Response{}, &provider.UpstreamError{Provider: "archive", Err: err}
	}

	resp, err := e.matcher.Match(ctx, records, candidates)
	if err != nil {
		e.logger.LogMatch(ctx, query, 0, 0, err)
		return catalog.Response{}, err
	}

	if opts.Limit > 0 && len(resp.Matches) > opts.Limit {
		resp.Matches = resp.Matches[:opts.Limit]
		resp.Total = len(resp.Matches)
	}

	for i := range resp.Matches {
		resp.Matches[i].MatchKey = e.registry.Register(resp.Matches[i])
	}

	e.logger.LogMatch(ctx, query, resp.Total, resp.Excluded, nil)
	return resp, nil
}

// ResolveMatch returns the registered match for key.
func (e *Engine) ResolveMatch(key string) (catalog.Match, error) {
	match, err := e.registry.Get(key)
	if err != nil {
		return catalog.Match{}, translateError(err)
	}
	return match, nil
}

// ClearRegistry drops all registered matches. Administrative/test hook.
func (e *Engine) ClearRegistry() {
	e.registry.Clear()
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger.Logger
}

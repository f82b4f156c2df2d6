package mediadex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitharbor/mediadex/catalog"
	"github.com/bitharbor/mediadex/provider"
	"github.com/bitharbor/mediadex/vectorlog"
)

func newMismatchedLog(t *testing.T) vectorlog.Store {
	t.Helper()
	return vectorlog.NewMemory(8)
}

// stubEmbedding returns fixed vectors per text.
type stubEmbedding struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedding) Encode(_ context.Context, text string) (provider.Result, error) {
	if s.err != nil {
		return provider.Result{}, s.err
	}
	v, ok := s.vectors[text]
	if !ok {
		return provider.Result{}, errors.New("unknown text")
	}
	return provider.Result{Vector: v}, nil
}

func (s *stubEmbedding) EncodeBatch(ctx context.Context, texts []string) ([]provider.Result, error) {
	results := make([]provider.Result, len(texts))
	for i, text := range texts {
		r, err := s.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

type stubMetadata struct {
	records []catalog.CanonicalRecord
	err     error
}

func (s *stubMetadata) Search(_ context.Context, _ string) ([]catalog.CanonicalRecord, error) {
	return s.records, s.err
}

type stubArchive struct {
	candidates []catalog.Candidate
	err        error
}

func (s *stubArchive) Search(_ context.Context, _ string, _ provider.SearchOptions) ([]catalog.Candidate, error) {
	return s.candidates, s.err
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, optFns ...func(o *Options)) *Engine {
	t.Helper()

	embedding := &stubEmbedding{vectors: map[string][]float32{
		"zombie movie":  {1, 0, 0},
		"space opera":   {0, 1, 0},
		"nature film":   {0, 0, 1},
		"zombie sequel": {0.9, 0.1, 0},
	}}
	metadata := &stubMetadata{records: []catalog.CanonicalRecord{
		{CanonicalID: "tt0063350", Title: "Night of the Living Dead", Year: 1968},
		{CanonicalID: "tt0077402", Title: "Dawn of the Dead", Year: 1978},
	}}
	archive := &stubArchive{candidates: []catalog.Candidate{
		{
			Identifier:    "notld-restored",
			Title:         "Night of the Living Dead",
			Year:          catalog.ParseYear("1968"),
			Downloads:     intPtr(150000),
			AverageRating: floatPtr(4.5),
		},
		{
			Identifier:    "notld-16mm",
			Title:         "Night of the Living Dead",
			Year:          catalog.ParseYear("1968"),
			Downloads:     intPtr(50000),
			AverageRating: floatPtr(3.2),
		},
	}}

	fns := append([]func(o *Options){func(o *Options) {
		o.Dimension = 3
	}}, optFns...)

	engine, err := New(embedding, metadata, archive, fns...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, engine.Close())
	})

	return engine
}

func TestNew(t *testing.T) {
	t.Run("requires a dimension", func(t *testing.T) {
		_, err := New(nil, nil, nil)
		var invalid *ErrInvalidDimension
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("rejects mismatched storage", func(t *testing.T) {
		_, err := New(nil, nil, nil, func(o *Options) {
			o.Dimension = 3
			o.VectorLog = newMismatchedLog(t)
		})
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns dense row ids", func(t *testing.T) {
		engine := newTestEngine(t)

		rowID, err := engine.Ingest(ctx, []float32{1, 0, 0}, "media-1")
		require.NoError(t, err)
		assert.Equal(t, uint32(0), rowID)

		rowID, err = engine.Ingest(ctx, []float32{0, 1, 0}, "media-2")
		require.NoError(t, err)
		assert.Equal(t, uint32(1), rowID)

		assert.Equal(t, 2, engine.Len())
	})

	t.Run("re-ingesting is idempotent", func(t *testing.T) {
		engine := newTestEngine(t)

		first, err := engine.Ingest(ctx, []float32{1, 2, 3}, "media-1")
		require.NoError(t, err)

		second, err := engine.Ingest(ctx, []float32{1, 2, 3}, "media-1")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, engine.Len())
	})

	t.Run("dimension mismatch is typed", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.Ingest(ctx, []float32{1, 2}, "media-1")
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 3, mismatch.Expected)
	})

	t.Run("text ingestion", func(t *testing.T) {
		engine := newTestEngine(t)

		rowID, err := engine.IngestText(ctx, "zombie movie", "media-1")
		require.NoError(t, err)
		assert.Equal(t, uint32(0), rowID)
	})

	t.Run("embedding failure surfaces as upstream error", func(t *testing.T) {
		embedding := &stubEmbedding{err: errors.New("quota exceeded")}
		engine, err := New(embedding, nil, nil, func(o *Options) {
			o.Dimension = 3
		})
		require.NoError(t, err)
		defer engine.Close()

		_, err = engine.IngestText(ctx, "anything", "media-1")
		var upstream *provider.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, "embedding", upstream.Provider)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		engine := newTestEngine(t)

		rowIDs, err := engine.IngestBatch(ctx, []IngestItem{
			{Text: "zombie movie", MediaID: "media-1"},
			{Text: "space opera", MediaID: "media-2"},
			{Text: "nature film", MediaID: "media-3"},
		})
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1, 2}, rowIDs)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("blank query short-circuits", func(t *testing.T) {
		// A nil embedding provider proves the short-circuit never encodes.
		engine, err := New(nil, nil, nil, func(o *Options) {
			o.Dimension = 3
		})
		require.NoError(t, err)
		defer engine.Close()

		results, err := engine.Search(ctx, "   ", 5)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("returns ranked media", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.IngestText(ctx, "zombie movie", "media-zombie")
		require.NoError(t, err)
		_, err = engine.IngestText(ctx, "space opera", "media-space")
		require.NoError(t, err)

		results, err := engine.Search(ctx, "zombie sequel", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "media-zombie", results[0].MediaID)
		assert.Equal(t, "media-space", results[1].MediaID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("self match ranks first", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.Ingest(ctx, []float32{1, 0, 0}, "media-1")
		require.NoError(t, err)
		_, err = engine.Ingest(ctx, []float32{0, 1, 0}, "media-2")
		require.NoError(t, err)

		results, err := engine.SearchVector(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "media-1", results[0].MediaID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	})

	t.Run("deduplicates media across rows", func(t *testing.T) {
		engine := newTestEngine(t)

		// Two embeddings for the same media item.
		_, err := engine.Ingest(ctx, []float32{1, 0, 0}, "media-1")
		require.NoError(t, err)
		_, err = engine.Ingest(ctx, []float32{0.9, 0.1, 0}, "media-1")
		require.NoError(t, err)
		_, err = engine.Ingest(ctx, []float32{0, 1, 0}, "media-2")
		require.NoError(t, err)

		results, err := engine.SearchVector(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "media-1", results[0].MediaID)
		assert.Equal(t, "media-2", results[1].MediaID)
	})

	t.Run("min score filters", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.Ingest(ctx, []float32{1, 0, 0}, "media-1")
		require.NoError(t, err)
		_, err = engine.Ingest(ctx, []float32{0, 1, 0}, "media-2")
		require.NoError(t, err)

		results, err := engine.SearchVector(ctx, []float32{1, 0, 0}, 2, func(o *SearchOptions) {
			o.MinScore = 0.5
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "media-1", results[0].MediaID)
	})

	t.Run("invalid k", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.SearchVector(ctx, []float32{1, 0, 0}, 0)
		require.ErrorIs(t, err, ErrInvalidK)
	})
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("matches and registers", func(t *testing.T) {
		engine := newTestEngine(t)

		resp, err := engine.Match(ctx, "night of the living dead")
		require.NoError(t, err)
		require.Equal(t, 1, resp.Total)
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, 1, resp.Excluded)

		match := resp.Matches[0]
		assert.NotEmpty(t, match.MatchKey)
		assert.Equal(t, "notld-restored", match.Best.Identifier)
		assert.InDelta(t, 24.0, match.Best.Score, 1e-9)
		require.Len(t, match.Candidates, 2)
		assert.InDelta(t, 11.4, match.Candidates[1].Score, 1e-9)

		resolved, err := engine.ResolveMatch(match.MatchKey)
		require.NoError(t, err)
		assert.Equal(t, match.Best.Identifier, resolved.Best.Identifier)
	})

	t.Run("unknown match key", func(t *testing.T) {
		engine := newTestEngine(t)

		_, err := engine.ResolveMatch("unknown")
		require.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("year filter narrows records", func(t *testing.T) {
		engine := newTestEngine(t)

		resp, err := engine.Match(ctx, "dead", func(o *MatchOptions) {
			o.YearFilter = intPtr(1978)
		})
		require.NoError(t, err)
		// Only Dawn of the Dead survives the filter, and no candidate
		// matches it.
		assert.Equal(t, 0, resp.Total)
		assert.Equal(t, 1, resp.Excluded)
	})

	t.Run("year filter leaves provider records untouched", func(t *testing.T) {
		// The stub hands back the same backing slice on every call, like a
		// provider with a response cache would.
		cached := []catalog.CanonicalRecord{
			{CanonicalID: "c1", Title: "Alpha", Year: 2000},
			{CanonicalID: "c2", Title: "Beta", Year: 1978},
		}
		metadata := &stubMetadata{records: cached}
		engine, err := New(nil, metadata, &stubArchive{}, func(o *Options) {
			o.Dimension = 3
		})
		require.NoError(t, err)
		defer engine.Close()

		_, err = engine.Match(ctx, "q", func(o *MatchOptions) {
			o.YearFilter = intPtr(1978)
		})
		require.NoError(t, err)

		assert.Equal(t, "c1", cached[0].CanonicalID)
		assert.Equal(t, "Alpha", cached[0].Title)
		assert.Equal(t, "c2", cached[1].CanonicalID)

		// A second filtered call sees the same records as the first.
		resp, err := engine.Match(ctx, "q", func(o *MatchOptions) {
			o.YearFilter = intPtr(2000)
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Excluded)
	})

	t.Run("limit caps matches", func(t *testing.T) {
		engine := newTestEngine(t)

		resp, err := engine.Match(ctx, "dead", func(o *MatchOptions) {
			o.Limit = 1
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("provider failures surface verbatim", func(t *testing.T) {
		metadata := &stubMetadata{err: errors.New("upstream down")}
		engine, err := New(nil, metadata, &stubArchive{}, func(o *Options) {
			o.Dimension = 3
		})
		require.NoError(t, err)
		defer engine.Close()

		_, err = engine.Match(ctx, "q")
		var upstream *provider.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, "metadata", upstream.Provider)
	})

	t.Run("clear registry", func(t *testing.T) {
		engine := newTestEngine(t)

		resp, err := engine.Match(ctx, "night of the living dead")
		require.NoError(t, err)
		require.NotEmpty(t, resp.Matches)

		engine.ClearRegistry()

		_, err = engine.ResolveMatch(resp.Matches[0].MatchKey)
		require.ErrorIs(t, err, ErrMatchNotFound)
	})
}

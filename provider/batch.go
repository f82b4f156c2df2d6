package provider

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EncoderFunc embeds a single text.
type EncoderFunc func(ctx context.Context, text string) (Result, error)

// Compile time check to ensure BatchEmbedding satisfies the Embedding interface.
var _ Embedding = (*BatchEmbedding)(nil)

// BatchEmbedding lifts a single-text encoder into the Embedding interface by
// fanning EncodeBatch out over a bounded worker group. Result order matches
// input order regardless of completion order.
type BatchEmbedding struct {
	encode      EncoderFunc
	concurrency int
}

// NewBatchEmbedding creates a BatchEmbedding running at most concurrency
// encodes in flight. Concurrency below 1 means sequential.
func NewBatchEmbedding(encode EncoderFunc, concurrency int) *BatchEmbedding {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchEmbedding{
		encode:      encode,
		concurrency: concurrency,
	}
}

// Encode implements the Embedding interface.
func (b *BatchEmbedding) Encode(ctx context.Context, text string) (Result, error) {
	return b.encode(ctx, text)
}

// EncodeBatch implements the Embedding interface.
func (b *BatchEmbedding) EncodeBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			result, err := b.encode(ctx, text)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/bitharbor/mediadex/catalog"
)

// Compile-time checks to ensure decorators satisfy the provider interfaces.
var _ ArchiveSource = (*RateLimitedArchive)(nil)
var _ MetadataSource = (*RateLimitedMetadata)(nil)

// RateLimitedArchive throttles an archive source to a request budget. Wait
// honors the context, so callers never block past cancellation.
type RateLimitedArchive struct {
	inner   ArchiveSource
	limiter *rate.Limiter
}

// NewRateLimitedArchive wraps inner with a limit of requestsPerSec and the
// given burst.
func NewRateLimitedArchive(inner ArchiveSource, requestsPerSec float64, burst int) *RateLimitedArchive {
	return &RateLimitedArchive{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
	}
}

// Search implements the ArchiveSource interface.
func (a *RateLimitedArchive) Search(ctx context.Context, query string, opts SearchOptions) ([]catalog.Candidate, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return a.inner.Search(ctx, query, opts)
}

// RateLimitedMetadata throttles a metadata source to a request budget.
type RateLimitedMetadata struct {
	inner   MetadataSource
	limiter *rate.Limiter
}

// NewRateLimitedMetadata wraps inner with a limit of requestsPerSec and the
// given burst.
func NewRateLimitedMetadata(inner MetadataSource, requestsPerSec float64, burst int) *RateLimitedMetadata {
	return &RateLimitedMetadata{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
	}
}

// Search implements the MetadataSource interface.
func (m *RateLimitedMetadata) Search(ctx context.Context, query string) ([]catalog.CanonicalRecord, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return m.inner.Search(ctx, query)
}

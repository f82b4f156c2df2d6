// Package provider defines the external collaborator contracts the engine
// consumes: embedding encoders, metadata sources, and archive sources.
//
// Providers are untrusted upstream services. Failures cross this boundary
// wrapped in UpstreamError, verbatim and unretried; the caller decides what
// a provider failure means.
package provider

import (
	"context"
	"fmt"

	"github.com/bitharbor/mediadex/catalog"
)

// Result is one encoded embedding. Hash is the provider's own content hash
// and is advisory only; identity always comes from canonicalization.
type Result struct {
	Vector []float32
	Hash   string
}

// Embedding turns text into embedding vectors.
type Embedding interface {
	// Encode embeds a single text.
	Encode(ctx context.Context, text string) (Result, error)

	// EncodeBatch embeds texts, preserving input order in the result.
	EncodeBatch(ctx context.Context, texts []string) ([]Result, error)
}

// MetadataSource serves trusted canonical records.
type MetadataSource interface {
	Search(ctx context.Context, query string) ([]catalog.CanonicalRecord, error)
}

// SearchOptions narrows an archive search.
type SearchOptions struct {
	// Limit caps the number of returned candidates. Zero means the
	// provider's default.
	Limit int

	// Filters are provider-specific field filters.
	Filters map[string]string

	// Sorts are provider-specific sort directives, applied in order.
	Sorts []string
}

// ArchiveSource serves raw, untrusted archive candidates.
type ArchiveSource interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]catalog.Candidate, error)
}

// UpstreamError wraps a provider failure with the provider's name.
type UpstreamError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

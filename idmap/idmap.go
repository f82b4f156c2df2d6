// Package idmap maintains the identity mapping between storage rows and
// media identities.
//
// Every committed vector row carries exactly one entry binding its row id to
// the canonical vector hash that produced it and the media id it belongs to.
// Vector hashes are unique across the map; media ids are not, so one media
// item may own several embeddings.
package idmap

import (
	"context"
	"fmt"
)

// Entry binds a storage row to its canonical vector hash and media id.
type Entry struct {
	RowID      uint32
	VectorHash string
	MediaID    string
}

// HashConflictError is returned when a vector hash is already bound to a
// different row.
type HashConflictError struct {
	VectorHash  string
	ExistingRow uint32
}

// Error implements the error interface.
func (e *HashConflictError) Error() string {
	return fmt.Sprintf("vector hash %q already mapped to row %d", e.VectorHash, e.ExistingRow)
}

// RowConflictError is returned when a row id is already bound to a
// different vector hash.
type RowConflictError struct {
	RowID        uint32
	ExistingHash string
}

// Error implements the error interface.
func (e *RowConflictError) Error() string {
	return fmt.Sprintf("row %d already mapped to vector hash %q", e.RowID, e.ExistingHash)
}

// Map is the identity map contract shared by the in-memory and durable
// implementations.
type Map interface {
	// Put records an entry. Re-putting an identical entry is a no-op;
	// rebinding a hash or row to a different partner fails with a typed
	// conflict error.
	Put(ctx context.Context, entry Entry) error

	// RowByHash returns the row bound to vectorHash, if any.
	RowByHash(ctx context.Context, vectorHash string) (uint32, bool, error)

	// MediaIDs resolves a batch of row ids to media ids. Unmapped rows are
	// simply absent from the result.
	MediaIDs(ctx context.Context, rowIDs []uint32) (map[uint32]string, error)

	// NextRowID returns the next dense row id, the highest mapped row plus
	// one, or zero for an empty map.
	NextRowID(ctx context.Context) (uint32, error)

	// Close releases underlying resources.
	Close() error
}

// Package vectorlog provides append-only, offset-addressed storage for
// canonical embedding vectors.
//
// Offsets are assigned densely from 0 in append order and are never reused;
// the vector index maps them 1:1 to row ids, so a durable log must replay to
// the same offsets after a restart.
package vectorlog

import (
	"context"
	"errors"
)

var (
	// ErrWrongDimension is returned when a vector doesn't match the log dimension.
	ErrWrongDimension = errors.New("wrong vector dimension")

	// ErrClosed is returned when operating on a closed log.
	ErrClosed = errors.New("vector log is closed")
)

// Store is the canonical append-only storage for vectors.
//
// Implementations must treat the configured dimension as authoritative and
// must assign offsets densely in append order starting at 0.
type Store interface {
	// Dimension returns the fixed vector dimensionality of the log.
	Dimension() int

	// Len returns the number of committed vectors.
	Len() int

	// Append commits v and returns its offset. Implementations must not
	// retain v; the stored copy is private to the log.
	Append(ctx context.Context, v []float32) (uint32, error)

	// Replay invokes fn for every committed vector in offset order.
	// Vectors appended concurrently with Replay may or may not be observed;
	// partially written records never are.
	Replay(ctx context.Context, fn func(offset uint32, v []float32) error) error

	// Close releases resources held by the log.
	Close() error
}

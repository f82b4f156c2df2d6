package vectorlog

import (
	"context"
	"slices"
	"sync"
)

// Compile time check to ensure Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

// Memory is an in-memory Store implementation.
// Thread-safe: appends are serialized, replays run concurrently.
type Memory struct {
	dimension int

	mu   sync.RWMutex
	vecs [][]float32
}

// NewMemory creates a new in-memory vector log.
func NewMemory(dimension int) *Memory {
	return &Memory{dimension: dimension}
}

// Dimension returns the fixed vector dimensionality of the log.
func (m *Memory) Dimension() int {
	return m.dimension
}

// Len returns the number of committed vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}

// Append commits v and returns its offset.
func (m *Memory) Append(_ context.Context, v []float32) (uint32, error) {
	if len(v) != m.dimension {
		return 0, ErrWrongDimension
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := uint32(len(m.vecs))
	m.vecs = append(m.vecs, slices.Clone(v))
	return offset, nil
}

// Replay invokes fn for every committed vector in offset order.
func (m *Memory) Replay(ctx context.Context, fn func(offset uint32, v []float32) error) error {
	m.mu.RLock()
	snapshot := m.vecs
	m.mu.RUnlock()

	for i, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the log's memory.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecs = nil
	return nil
}

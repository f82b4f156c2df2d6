// Package registry keeps process-scoped handles to finished catalog matches.
//
// Entries are never persisted: the registry exists so callers can hand out a
// short match key and resolve it later within the same process lifetime.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bitharbor/mediadex/catalog"
)

// MatchKeyNotFoundError is returned when a match key has no registered match.
type MatchKeyNotFoundError struct {
	MatchKey string
}

// Error implements the error interface.
func (e *MatchKeyNotFoundError) Error() string {
	return fmt.Sprintf("match key not found: %q", e.MatchKey)
}

// Registry is an in-memory match store. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]catalog.Match
	counter atomic.Uint64
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		matches: make(map[string]catalog.Match),
	}
}

// Register stores match under a freshly generated key and returns the key.
// The stored match carries the key in MatchKey; the input is not mutated.
func (r *Registry) Register(match catalog.Match) string {
	key := fmt.Sprintf("%s-%d", match.CanonicalID, r.counter.Add(1))
	match.MatchKey = key

	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[key] = match

	return key
}

// Get returns the match registered under key.
func (r *Registry) Get(key string) (catalog.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.matches[key]
	if !ok {
		return catalog.Match{}, &MatchKeyNotFoundError{MatchKey: key}
	}
	return match, nil
}

// Len returns the number of registered matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Clear drops all registered matches. The key counter keeps counting, so
// keys are never reused within a process.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = make(map[string]catalog.Match)
}

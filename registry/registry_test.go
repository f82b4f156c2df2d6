package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitharbor/mediadex/catalog"
)

func testMatch(canonicalID string) catalog.Match {
	best := catalog.MatchCandidate{
		Candidate: catalog.Candidate{Identifier: "cand-1", Title: "Example", Year: catalog.Year(2000)},
		Score:     12.5,
	}
	return catalog.Match{
		CanonicalID: canonicalID,
		Record:      catalog.CanonicalRecord{CanonicalID: canonicalID, Title: "Example", Year: 2000},
		Best:        best,
		Candidates:  []catalog.MatchCandidate{best},
	}
}

func TestRegistry(t *testing.T) {
	t.Run("register and resolve", func(t *testing.T) {
		r := New()

		key := r.Register(testMatch("tt0000001"))
		assert.Equal(t, "tt0000001-1", key)

		match, err := r.Get(key)
		require.NoError(t, err)
		assert.Equal(t, key, match.MatchKey)
		assert.Equal(t, "cand-1", match.Best.Identifier)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("unknown key fails", func(t *testing.T) {
		r := New()

		_, err := r.Get("unknown")
		var notFound *MatchKeyNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "unknown", notFound.MatchKey)
	})

	t.Run("keys are unique per canonical id", func(t *testing.T) {
		r := New()

		first := r.Register(testMatch("tt0000001"))
		second := r.Register(testMatch("tt0000001"))
		assert.NotEqual(t, first, second)
	})

	t.Run("clear drops matches but never reuses keys", func(t *testing.T) {
		r := New()

		key := r.Register(testMatch("tt0000001"))
		r.Clear()
		assert.Equal(t, 0, r.Len())

		_, err := r.Get(key)
		require.Error(t, err)

		again := r.Register(testMatch("tt0000001"))
		assert.NotEqual(t, key, again)
	})

	t.Run("concurrent registration", func(t *testing.T) {
		r := New()

		done := make(chan string, 20)
		for i := 0; i < 20; i++ {
			go func(i int) {
				done <- r.Register(testMatch(fmt.Sprintf("tt%07d", i)))
			}(i)
		}

		keys := make(map[string]struct{}, 20)
		for i := 0; i < 20; i++ {
			keys[<-done] = struct{}{}
		}
		assert.Len(t, keys, 20)
		assert.Equal(t, 20, r.Len())
	})
}

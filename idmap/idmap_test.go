package idmap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMap(t *testing.T, newMap func(t *testing.T) Map) {
	t.Helper()

	ctx := context.Background()

	t.Run("put and lookup", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		require.NoError(t, m.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))
		require.NoError(t, m.Put(ctx, Entry{RowID: 1, VectorHash: "bbb", MediaID: "media-2"}))

		rowID, ok, err := m.RowByHash(ctx, "aaa")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(0), rowID)

		_, ok, err = m.RowByHash(ctx, "zzz")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put is idempotent", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		entry := Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}
		require.NoError(t, m.Put(ctx, entry))
		require.NoError(t, m.Put(ctx, entry))

		next, err := m.NextRowID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), next)
	})

	t.Run("rebinding a hash fails", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		require.NoError(t, m.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))

		err := m.Put(ctx, Entry{RowID: 1, VectorHash: "aaa", MediaID: "media-2"})
		var conflict *HashConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, uint32(0), conflict.ExistingRow)
	})

	t.Run("rebinding a row fails", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		require.NoError(t, m.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))

		err := m.Put(ctx, Entry{RowID: 0, VectorHash: "bbb", MediaID: "media-1"})
		var conflict *RowConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "aaa", conflict.ExistingHash)
	})

	t.Run("media id may own several rows", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		require.NoError(t, m.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))
		require.NoError(t, m.Put(ctx, Entry{RowID: 1, VectorHash: "bbb", MediaID: "media-1"}))

		ids, err := m.MediaIDs(ctx, []uint32{0, 1})
		require.NoError(t, err)
		assert.Equal(t, map[uint32]string{0: "media-1", 1: "media-1"}, ids)
	})

	t.Run("batch lookup skips absent rows", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		require.NoError(t, m.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))
		require.NoError(t, m.Put(ctx, Entry{RowID: 2, VectorHash: "ccc", MediaID: "media-3"}))

		ids, err := m.MediaIDs(ctx, []uint32{0, 1, 2, 7})
		require.NoError(t, err)
		assert.Equal(t, map[uint32]string{0: "media-1", 2: "media-3"}, ids)
	})

	t.Run("empty batch lookup", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		ids, err := m.MediaIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("next row id on empty map", func(t *testing.T) {
		m := newMap(t)
		defer m.Close()

		next, err := m.NextRowID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), next)
	})
}

func TestMemory(t *testing.T) {
	testMap(t, func(t *testing.T) Map {
		return NewMemory()
	})
}

func TestSQLite(t *testing.T) {
	testMap(t, func(t *testing.T) Map {
		m, err := OpenSQLite(filepath.Join(t.TempDir(), "idmap.db"))
		require.NoError(t, err)
		return m
	})
}

func TestMemorySaveLoad(t *testing.T) {
	ctx := context.Background()

	src := NewMemory()
	require.NoError(t, src.Put(ctx, Entry{RowID: 0, VectorHash: "aaa", MediaID: "media-1"}))
	require.NoError(t, src.Put(ctx, Entry{RowID: 1, VectorHash: "bbb", MediaID: "media-2"}))
	require.NoError(t, src.Put(ctx, Entry{RowID: 5, VectorHash: "fff", MediaID: "media-1"}))

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst := NewMemory()
	require.NoError(t, dst.Load(&buf))

	assert.Equal(t, 3, dst.Len())

	rowID, ok, err := dst.RowByHash(ctx, "fff")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(5), rowID)

	next, err := dst.NextRowID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), next)

	assert.True(t, dst.HasRow(1))
	assert.False(t, dst.HasRow(2))
	assert.Equal(t, uint64(3), dst.MappedRows().GetCardinality())
}

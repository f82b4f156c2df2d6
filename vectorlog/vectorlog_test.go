package vectorlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitharbor/mediadex/blobstore"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("append assigns dense offsets", func(t *testing.T) {
		log := NewMemory(3)

		off, err := log.Append(ctx, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), off)

		off, err = log.Append(ctx, []float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), off)

		assert.Equal(t, 2, log.Len())
		assert.Equal(t, 3, log.Dimension())
	})

	t.Run("append rejects wrong dimension", func(t *testing.T) {
		log := NewMemory(3)

		_, err := log.Append(ctx, []float32{1, 2})
		require.ErrorIs(t, err, ErrWrongDimension)
	})

	t.Run("append copies the input", func(t *testing.T) {
		log := NewMemory(2)

		v := []float32{1, 2}
		_, err := log.Append(ctx, v)
		require.NoError(t, err)

		v[0] = 99

		err = log.Replay(ctx, func(_ uint32, got []float32) error {
			assert.Equal(t, []float32{1, 2}, got)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("replay visits vectors in offset order", func(t *testing.T) {
		log := NewMemory(1)

		for i := 0; i < 5; i++ {
			_, err := log.Append(ctx, []float32{float32(i)})
			require.NoError(t, err)
		}

		var got []float32
		err := log.Replay(ctx, func(offset uint32, v []float32) error {
			assert.Equal(t, uint32(len(got)), offset)
			got = append(got, v[0])
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 2, 3, 4}, got)
	})
}

func TestFile(t *testing.T) {
	ctx := context.Background()

	t.Run("offsets survive restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.log")

		log, err := OpenFile(path, 3)
		require.NoError(t, err)

		off, err := log.Append(ctx, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), off)

		off, err = log.Append(ctx, []float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), off)

		require.NoError(t, log.Close())

		log, err = OpenFile(path, 3)
		require.NoError(t, err)
		defer log.Close()

		assert.Equal(t, 2, log.Len())

		off, err = log.Append(ctx, []float32{7, 8, 9})
		require.NoError(t, err)
		assert.Equal(t, uint32(2), off)

		var got [][]float32
		err = log.Replay(ctx, func(_ uint32, v []float32) error {
			got = append(got, append([]float32(nil), v...))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, got)
	})

	t.Run("torn tail is truncated on open", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.log")

		log, err := OpenFile(path, 2)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := log.Append(ctx, []float32{float32(i), float32(i)})
			require.NoError(t, err)
		}
		require.NoError(t, log.Close())

		// Simulate a crash mid-append.
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		_, err = f.Write([]byte{0, 8, 0, 0, 0, 1, 2})
		require.NoError(t, err)
		require.NoError(t, f.Close())

		log, err = OpenFile(path, 2)
		require.NoError(t, err)
		defer log.Close()

		assert.Equal(t, 3, log.Len())

		off, err := log.Append(ctx, []float32{9, 9})
		require.NoError(t, err)
		assert.Equal(t, uint32(3), off)
	})

	t.Run("compressed records round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.log")

		log, err := OpenFile(path, 64, func(o *FileOptions) {
			o.Compression = true
		})
		require.NoError(t, err)

		// Highly compressible rows.
		want := make([][]float32, 4)
		for i := range want {
			row := make([]float32, 64)
			for j := range row {
				row[j] = float32(i)
			}
			want[i] = row

			_, err := log.Append(ctx, row)
			require.NoError(t, err)
		}
		require.NoError(t, log.Close())

		log, err = OpenFile(path, 64, func(o *FileOptions) {
			o.Compression = true
		})
		require.NoError(t, err)
		defer log.Close()

		var got [][]float32
		err = log.Replay(ctx, func(_ uint32, v []float32) error {
			got = append(got, append([]float32(nil), v...))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("open rejects mismatched dimension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.log")

		log, err := OpenFile(path, 4)
		require.NoError(t, err)
		require.NoError(t, log.Close())

		_, err = OpenFile(path, 8)
		require.Error(t, err)
	})

	t.Run("append after close fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.log")

		log, err := OpenFile(path, 2)
		require.NoError(t, err)
		require.NoError(t, log.Close())

		_, err = log.Append(ctx, []float32{1, 2})
		require.ErrorIs(t, err, ErrClosed)
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		src := NewMemory(3)
		for i := 0; i < 10; i++ {
			_, err := src.Append(ctx, []float32{float32(i), float32(i) * 2, float32(i) * 3})
			require.NoError(t, err)
		}

		bs := blobstore.NewMemoryStore()
		require.NoError(t, Snapshot(ctx, src, bs, "vectors.snap"))

		dst := NewMemory(3)
		require.NoError(t, Restore(ctx, bs, "vectors.snap", dst))

		assert.Equal(t, src.Len(), dst.Len())

		var got [][]float32
		err := dst.Replay(ctx, func(_ uint32, v []float32) error {
			got = append(got, append([]float32(nil), v...))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{
			{0, 0, 0}, {1, 2, 3}, {2, 4, 6}, {3, 6, 9}, {4, 8, 12},
			{5, 10, 15}, {6, 12, 18}, {7, 14, 21}, {8, 16, 24}, {9, 18, 27},
		}, got)
	})

	t.Run("restore rejects dimension mismatch", func(t *testing.T) {
		src := NewMemory(2)
		_, err := src.Append(ctx, []float32{1, 2})
		require.NoError(t, err)

		bs := blobstore.NewMemoryStore()
		require.NoError(t, Snapshot(ctx, src, bs, "vectors.snap"))

		err = Restore(ctx, bs, "vectors.snap", NewMemory(4))
		require.Error(t, err)
	})

	t.Run("restore rejects non-empty target", func(t *testing.T) {
		src := NewMemory(2)
		_, err := src.Append(ctx, []float32{1, 2})
		require.NoError(t, err)

		bs := blobstore.NewMemoryStore()
		require.NoError(t, Snapshot(ctx, src, bs, "vectors.snap"))

		dst := NewMemory(2)
		_, err = dst.Append(ctx, []float32{3, 4})
		require.NoError(t, err)

		err = Restore(ctx, bs, "vectors.snap", dst)
		require.Error(t, err)
	})

	t.Run("restore of missing snapshot fails", func(t *testing.T) {
		err := Restore(ctx, blobstore.NewMemoryStore(), "missing.snap", NewMemory(2))
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

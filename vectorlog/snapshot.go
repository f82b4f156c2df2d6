package vectorlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/bitharbor/mediadex/blobstore"
)

// Snapshot layout (inside a zstd stream):
//
//	magic "MDXS" | version u8 | dimension u32 | count u32 | count*dimension float32
var snapshotMagic = [4]byte{'M', 'D', 'X', 'S'}

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 4 + 1 + 4 + 4
)

// Snapshot writes the full contents of log as a zstd-compressed blob named
// name. The snapshot reflects the commit boundary at call time.
func Snapshot(ctx context.Context, log Store, bs blobstore.Store, name string) error {
	w, err := bs.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("create snapshot blob: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		_ = w.Close()
		return err
	}

	count := log.Len()
	dimension := log.Dimension()

	var header [snapshotHeaderSize]byte
	copy(header[:], snapshotMagic[:])
	header[4] = snapshotVersion
	binary.LittleEndian.PutUint32(header[5:], uint32(dimension))
	binary.LittleEndian.PutUint32(header[9:], uint32(count))
	if _, err := zw.Write(header[:]); err != nil {
		_ = zw.Close()
		_ = w.Close()
		return err
	}

	row := make([]byte, dimension*4)
	err = log.Replay(ctx, func(offset uint32, v []float32) error {
		if offset >= uint32(count) {
			return nil
		}
		for i, x := range v {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(x))
		}
		_, werr := zw.Write(row)
		return werr
	})
	if err != nil {
		_ = zw.Close()
		_ = w.Close()
		return fmt.Errorf("snapshot vector log: %w", err)
	}

	if err := zw.Close(); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Restore reads the snapshot named name from bs and appends its vectors into
// dst in offset order. dst must be empty and share the snapshot's dimension.
func Restore(ctx context.Context, bs blobstore.Store, name string, dst Store) error {
	if dst.Len() != 0 {
		return errors.New("restore target is not empty")
	}

	blob, err := bs.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("open snapshot blob: %w", err)
	}
	defer blob.Close()

	zr, err := zstd.NewReader(blobstore.NewReader(ctx, blob))
	if err != nil {
		return err
	}
	defer zr.Close()

	r := bufio.NewReader(zr)

	var header [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("read snapshot header: %w", err)
	}
	if !bytes.Equal(header[:4], snapshotMagic[:]) {
		return errors.New("not a vector log snapshot")
	}
	if header[4] != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d", header[4])
	}
	dimension := int(binary.LittleEndian.Uint32(header[5:]))
	count := int(binary.LittleEndian.Uint32(header[9:]))
	if dimension != dst.Dimension() {
		return fmt.Errorf("snapshot dimension %d does not match target %d", dimension, dst.Dimension())
	}

	row := make([]byte, dimension*4)
	v := make([]float32, dimension)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("read snapshot row %d: %w", i, err)
		}
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		if _, err := dst.Append(ctx, v); err != nil {
			return fmt.Errorf("restore snapshot row %d: %w", i, err)
		}
	}

	return nil
}

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
	"os"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/bitharbor/mediadex/internal/hash"
)

// File log layout:
//
//	header: magic "MDXL" | version u8 | dimension u32
//	record: flags u8 | storedLen u32 | payload | crc32c u32
//
// All integers are little-endian. flags bit0 marks an lz4 block-compressed
// payload; uncompressed payloads are exactly dimension*4 bytes of
// little-endian float32s. The crc covers the payload only.
var fileMagic = [4]byte{'M', 'D', 'X', 'L'}

const (
	fileVersion    = 1
	fileHeaderSize = 4 + 1 + 4

	flagCompressed = 1 << 0
)

// FileOptions contains configuration options for the file log.
type FileOptions struct {
	// Compression enables lz4 block compression of record payloads.
	// Incompressible records are stored raw.
	Compression bool

	// SyncWrites fsyncs after every append. Slower, but a crash never loses
	// an acknowledged vector.
	SyncWrites bool
}

// DefaultFileOptions contains the default configuration options for the file log.
var DefaultFileOptions = FileOptions{
	Compression: false,
	SyncWrites:  true,
}

// Compile time check to ensure File satisfies the Store interface.
var _ Store = (*File)(nil)

// File is a durable append-only vector log backed by a single file.
//
// Opening a log replays existing records to restore offsets; a torn record
// at the tail (crash mid-write) is truncated away. Offsets therefore survive
// restart without renumbering.
type File struct {
	path      string
	dimension int
	opts      FileOptions

	mu         sync.RWMutex
	f          *os.File
	count      int
	committed  int64 // file offset past the last valid record
	compressor lz4.Compressor
	closed     bool
}

// OpenFile opens or creates a file log at path for vectors of the given
// dimension.
func OpenFile(path string, dimension int, optFns ...func(o *FileOptions)) (*File, error) {
	opts := DefaultFileOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open vector log: %w", err)
	}

	l := &File{
		path:      path,
		dimension: dimension,
		opts:      opts,
		f:         f,
	}

	if err := l.recover(); err != nil {
		_ = f.Close()
		return nil, err
	}

	if _, err := f.Seek(l.committed, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek vector log tail: %w", err)
	}

	return l, nil
}

// recover validates the header and scans records, truncating a torn tail.
func (l *File) recover() error {
	st, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("stat vector log: %w", err)
	}

	if st.Size() == 0 {
		var header [fileHeaderSize]byte
		copy(header[:], fileMagic[:])
		header[4] = fileVersion
		binary.LittleEndian.PutUint32(header[5:], uint32(l.dimension))
		if _, err := l.f.Write(header[:]); err != nil {
			return fmt.Errorf("write vector log header: %w", err)
		}
		if err := l.f.Sync(); err != nil {
			return err
		}
		l.committed = fileHeaderSize
		return nil
	}

	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(l.f)

	var header [fileHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("read vector log header: %w", err)
	}
	if !bytes.Equal(header[:4], fileMagic[:]) {
		return errors.New("not a vector log file")
	}
	if header[4] != fileVersion {
		return fmt.Errorf("unsupported vector log version: %d", header[4])
	}
	if dim := binary.LittleEndian.Uint32(header[5:]); int(dim) != l.dimension {
		return fmt.Errorf("vector log dimension %d does not match configured %d", dim, l.dimension)
	}

	l.committed = fileHeaderSize
	for {
		v, recordLen, err := readRecord(r, l.dimension)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Torn or corrupt tail: drop everything from the last valid
			// record boundary onward.
			if terr := l.f.Truncate(l.committed); terr != nil {
				return fmt.Errorf("truncate torn vector log tail: %w", terr)
			}
			break
		}
		_ = v
		l.committed += recordLen
		l.count++
	}

	return nil
}

// Dimension returns the fixed vector dimensionality of the log.
func (l *File) Dimension() int {
	return l.dimension
}

// Len returns the number of committed vectors.
func (l *File) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Append commits v and returns its offset.
func (l *File) Append(ctx context.Context, v []float32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(v) != l.dimension {
		return 0, ErrWrongDimension
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	record := l.encodeRecord(v)
	if _, err := l.f.Write(record); err != nil {
		// Roll back a partial write so the next append starts at a record
		// boundary.
		_ = l.f.Truncate(l.committed)
		_, _ = l.f.Seek(l.committed, io.SeekStart)
		return 0, fmt.Errorf("append vector record: %w", err)
	}
	if l.opts.SyncWrites {
		if err := l.f.Sync(); err != nil {
			return 0, fmt.Errorf("sync vector log: %w", err)
		}
	}

	offset := uint32(l.count)
	l.committed += int64(len(record))
	l.count++
	return offset, nil
}

func (l *File) encodeRecord(v []float32) []byte {
	raw := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(x))
	}

	payload := raw
	flags := byte(0)
	if l.opts.Compression {
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		if n, err := l.compressor.CompressBlock(raw, dst); err == nil && n > 0 && n < len(raw) {
			payload = dst[:n]
			flags = flagCompressed
		}
	}

	record := make([]byte, 1+4+len(payload)+4)
	record[0] = flags
	binary.LittleEndian.PutUint32(record[1:], uint32(len(payload)))
	copy(record[5:], payload)
	binary.LittleEndian.PutUint32(record[5+len(payload):], hash.CRC32C(payload))
	return record
}

// readRecord decodes one record from r. It returns io.EOF at a clean end of
// stream and a descriptive error for torn or corrupt records.
func readRecord(r io.Reader, dimension int) ([]float32, int64, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:1]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("read record flags: %w", err)
	}
	if _, err := io.ReadFull(r, head[1:]); err != nil {
		return nil, 0, fmt.Errorf("read record length: %w", err)
	}

	flags := head[0]
	storedLen := binary.LittleEndian.Uint32(head[1:])
	rawLen := uint32(dimension * 4)
	if storedLen == 0 || storedLen > rawLen+lz4BlockOverhead(rawLen) {
		return nil, 0, fmt.Errorf("implausible record length: %d", storedLen)
	}
	if flags&flagCompressed == 0 && storedLen != rawLen {
		return nil, 0, fmt.Errorf("uncompressed record length %d, want %d", storedLen, rawLen)
	}

	payload := make([]byte, storedLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, fmt.Errorf("read record payload: %w", err)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, 0, fmt.Errorf("read record checksum: %w", err)
	}
	if binary.LittleEndian.Uint32(crcBuf[:]) != hash.CRC32C(payload) {
		return nil, 0, errors.New("record checksum mismatch")
	}

	raw := payload
	if flags&flagCompressed != 0 {
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, 0, fmt.Errorf("decompress record: %w", err)
		}
		if uint32(n) != rawLen {
			return nil, 0, fmt.Errorf("decompressed record length %d, want %d", n, rawLen)
		}
	}

	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return v, int64(1 + 4 + storedLen + 4), nil
}

func lz4BlockOverhead(rawLen uint32) uint32 {
	return uint32(lz4.CompressBlockBound(int(rawLen))) - rawLen
}

// Replay invokes fn for every committed vector in offset order.
//
// Replay reads through an independent handle and only up to the commit
// boundary observed at call time, so it can run concurrently with appends
// without ever observing a partial record.
func (l *File) Replay(ctx context.Context, fn func(offset uint32, v []float32) error) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	committed := l.committed
	l.mu.RUnlock()

	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open vector log for replay: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(fileHeaderSize, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(io.LimitReader(f, committed-fileHeaderSize))

	var offset uint32
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, _, err := readRecord(r, l.dimension)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay record %d: %w", offset, err)
		}
		if err := fn(offset, v); err != nil {
			return err
		}
		offset++
	}
}

// Close syncs and closes the underlying file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.f.Sync(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}

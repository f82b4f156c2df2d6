package idmap

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Compile time check to ensure Memory satisfies the Map interface.
var _ Map = (*Memory)(nil)

// Memory is an in-memory Map implementation backed by Go maps plus a roaring
// bitmap of mapped rows. It supports persistence via Save/Load.
type Memory struct {
	mu     sync.RWMutex
	byHash map[string]Entry
	byRow  map[uint32]Entry
	rows   *roaring.Bitmap
}

// NewMemory creates a new in-memory identity map.
func NewMemory() *Memory {
	return &Memory{
		byHash: make(map[string]Entry),
		byRow:  make(map[uint32]Entry),
		rows:   roaring.New(),
	}
}

// Put records an entry.
func (m *Memory) Put(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byHash[entry.VectorHash]; ok && existing.RowID != entry.RowID {
		return &HashConflictError{VectorHash: entry.VectorHash, ExistingRow: existing.RowID}
	}
	if existing, ok := m.byRow[entry.RowID]; ok && existing.VectorHash != entry.VectorHash {
		return &RowConflictError{RowID: entry.RowID, ExistingHash: existing.VectorHash}
	}

	m.byHash[entry.VectorHash] = entry
	m.byRow[entry.RowID] = entry
	m.rows.Add(entry.RowID)
	return nil
}

// RowByHash returns the row bound to vectorHash, if any.
func (m *Memory) RowByHash(_ context.Context, vectorHash string) (uint32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.byHash[vectorHash]
	return entry.RowID, ok, nil
}

// MediaIDs resolves a batch of row ids to media ids.
func (m *Memory) MediaIDs(_ context.Context, rowIDs []uint32) (map[uint32]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[uint32]string, len(rowIDs))
	for _, rowID := range rowIDs {
		if entry, ok := m.byRow[rowID]; ok {
			result[rowID] = entry.MediaID
		}
	}
	return result, nil
}

// NextRowID returns the next dense row id.
func (m *Memory) NextRowID(_ context.Context) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.rows.IsEmpty() {
		return 0, nil
	}
	return m.rows.Maximum() + 1, nil
}

// HasRow reports whether rowID is mapped.
func (m *Memory) HasRow(rowID uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows.Contains(rowID)
}

// MappedRows returns a copy of the mapped-row set.
func (m *Memory) MappedRows() *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows.Clone()
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRow)
}

// Close implements the Map interface. It is a no-op for Memory.
func (m *Memory) Close() error {
	return nil
}

// Save persists the map to w.
// Format: [Count: 8 bytes] [Entry...]
// Entry: [RowID: 4 bytes] [HashLen: 4 bytes] [Hash] [MediaLen: 4 bytes] [MediaID]
func (m *Memory) Save(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint64(len(m.byRow))); err != nil {
		return err
	}

	for _, entry := range m.byRow {
		if err := binary.Write(bw, binary.LittleEndian, entry.RowID); err != nil {
			return err
		}
		if err := writeString(bw, entry.VectorHash); err != nil {
			return err
		}
		if err := writeString(bw, entry.MediaID); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load populates the map from r, replacing any existing entries.
func (m *Memory) Load(r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	br := bufio.NewReader(r)

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	m.byHash = make(map[string]Entry, count)
	m.byRow = make(map[uint32]Entry, count)
	m.rows = roaring.New()

	for i := uint64(0); i < count; i++ {
		var entry Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.RowID); err != nil {
			return err
		}

		var err error
		if entry.VectorHash, err = readString(br); err != nil {
			return err
		}
		if entry.MediaID, err = readString(br); err != nil {
			return err
		}

		m.byHash[entry.VectorHash] = entry
		m.byRow[entry.RowID] = entry
		m.rows.Add(entry.RowID)
	}

	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

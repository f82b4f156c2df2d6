package idmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ann_id_map (
	row_id      INTEGER PRIMARY KEY,
	vector_hash TEXT UNIQUE NOT NULL,
	media_id    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ann_id_map_media_id ON ann_id_map(media_id);
`

// Compile time check to ensure SQLite satisfies the Map interface.
var _ Map = (*SQLite)(nil)

// SQLite is a durable Map implementation backed by a sqlite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the identity map database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply id map schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Put records an entry.
func (s *SQLite) Put(ctx context.Context, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin id map put: %w", err)
	}
	defer tx.Rollback()

	var existingRow int64
	err = tx.QueryRowContext(ctx,
		"SELECT row_id FROM ann_id_map WHERE vector_hash = ?", entry.VectorHash,
	).Scan(&existingRow)
	switch {
	case err == nil:
		if uint32(existingRow) != entry.RowID {
			return &HashConflictError{VectorHash: entry.VectorHash, ExistingRow: uint32(existingRow)}
		}
		// Identical binding already present.
		return tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("lookup vector hash: %w", err)
	}

	var existingHash string
	err = tx.QueryRowContext(ctx,
		"SELECT vector_hash FROM ann_id_map WHERE row_id = ?", int64(entry.RowID),
	).Scan(&existingHash)
	switch {
	case err == nil:
		return &RowConflictError{RowID: entry.RowID, ExistingHash: existingHash}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("lookup row: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO ann_id_map (row_id, vector_hash, media_id) VALUES (?, ?, ?)",
		int64(entry.RowID), entry.VectorHash, entry.MediaID,
	); err != nil {
		return fmt.Errorf("insert id map entry: %w", err)
	}

	return tx.Commit()
}

// RowByHash returns the row bound to vectorHash, if any.
func (s *SQLite) RowByHash(ctx context.Context, vectorHash string) (uint32, bool, error) {
	var rowID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT row_id FROM ann_id_map WHERE vector_hash = ?", vectorHash,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup vector hash: %w", err)
	}
	return uint32(rowID), true, nil
}

// MediaIDs resolves a batch of row ids to media ids in one query.
func (s *SQLite) MediaIDs(ctx context.Context, rowIDs []uint32) (map[uint32]string, error) {
	result := make(map[uint32]string, len(rowIDs))
	if len(rowIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rowIDs)), ",")
	args := make([]any, len(rowIDs))
	for i, rowID := range rowIDs {
		args[i] = int64(rowID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT row_id, media_id FROM ann_id_map WHERE row_id IN ("+placeholders+")", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("batch media id lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rowID   int64
			mediaID string
		)
		if err := rows.Scan(&rowID, &mediaID); err != nil {
			return nil, fmt.Errorf("scan id map row: %w", err)
		}
		result[uint32(rowID)] = mediaID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate id map rows: %w", err)
	}

	return result, nil
}

// NextRowID returns the next dense row id.
func (s *SQLite) NextRowID(ctx context.Context) (uint32, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(row_id) + 1, 0) FROM ann_id_map",
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next row id: %w", err)
	}
	return uint32(next), nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

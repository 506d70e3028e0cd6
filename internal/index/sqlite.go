package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER NOT NULL,
	chunk INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	embedding_vector BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_handle ON passages(handle, seq);
`

// SQLiteStore persists passages under a directory so indexes survive restarts.
// Similarity is computed in process over the handle's rows.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) <dir>/passages.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persist dir: %w", err)
	}
	path := filepath.Join(dir, "passages.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Insert adds entries under handle in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, handle string, entries []Entry) error {
	if err := checkDimensions(entries, 0); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM passages WHERE handle = ?`, handle).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages
		(id, handle, seq, text, source, page, chunk, total_chunks, embedding_vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		p := e.Passage
		_, err := stmt.ExecContext(ctx, p.ID, handle, seq, p.Text, p.SourceDocument, p.Page, p.ChunkIndex, p.ChunkCount,
			encodeVector(normalizeVector(e.Vector)))
		if err != nil {
			return fmt.Errorf("insert passage %s: %w", p.ID, err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search loads the handle's vectors and ranks them by cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, handle string, query []float32, k int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, source, page, chunk, total_chunks, embedding_vector
		FROM passages WHERE handle = ? ORDER BY seq`, handle)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var p domain.Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Text, &p.SourceDocument, &p.Page, &p.ChunkIndex, &p.ChunkCount, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		entries = append(entries, Entry{Passage: p, Vector: decodeVector(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}

	return rank(entries, normalizeVector(query), k)
}

// Delete removes every row of handle.
func (s *SQLiteStore) Delete(ctx context.Context, handle string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE handle = ?`, handle); err != nil {
		return fmt.Errorf("delete handle: %w", err)
	}
	return nil
}

// Count returns the number of rows under handle.
func (s *SQLiteStore) Count(ctx context.Context, handle string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages WHERE handle = ?`, handle).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Handles lists stored handles.
func (s *SQLiteStore) Handles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT handle FROM passages ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : (i+1)*4]))
	}
	return v
}

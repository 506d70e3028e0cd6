package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	page INTEGER NOT NULL,
	chunk INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	embedding vector NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_handle ON passages(handle, seq);
`

// PostgresStore keeps passages in PostgreSQL and ranks them with pgvector's
// cosine distance operator.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Insert adds entries under handle in one transaction.
func (s *PostgresStore) Insert(ctx context.Context, handle string, entries []Entry) error {
	if err := checkDimensions(entries, 0); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM passages WHERE handle = $1`, handle).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	for _, e := range entries {
		p := e.Passage
		_, err := tx.ExecContext(ctx, `INSERT INTO passages
			(id, handle, seq, text, source, page, chunk, total_chunks, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, handle, seq, p.Text, p.SourceDocument, p.Page, p.ChunkIndex, p.ChunkCount,
			pgvector.NewVector(e.Vector))
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

// Search returns the k nearest passages of handle.
func (s *PostgresStore) Search(ctx context.Context, handle string, query []float32, k int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, source, page, chunk, total_chunks,
			1 - (embedding <=> $2) AS score
		FROM passages
		WHERE handle = $1
		ORDER BY embedding <=> $2, seq
		LIMIT $3`, handle, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		p := &m.Passage
		if err := rows.Scan(&p.ID, &p.Text, &p.SourceDocument, &p.Page, &p.ChunkIndex, &p.ChunkCount, &m.Score); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}

	if len(out) == 0 {
		n, err := s.Count(ctx, handle)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
		}
	}
	return out, nil
}

// Delete removes every row of handle.
func (s *PostgresStore) Delete(ctx context.Context, handle string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("delete handle: %w", err)
	}
	return nil
}

// Count returns the number of rows under handle.
func (s *PostgresStore) Count(ctx context.Context, handle string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages WHERE handle = $1`, handle).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Handles lists stored handles.
func (s *PostgresStore) Handles(ctx context.Context) ([]string, error) {
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

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

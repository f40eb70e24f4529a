// Package sqlite stores an embedding set in a SQLite database using the
// pure-Go modernc.org/sqlite driver, so the matrix can be queried without
// loading the .npy file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/neurlang/imgembed/embedding"
	"github.com/neurlang/imgembed/embedding/bruteforce"
)

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    path TEXT NOT NULL,
    dim INTEGER NOT NULL,
    embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS embeddings_position ON embeddings(position);
`

// Store is a SQLite-backed copy of an embedding set.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dsn and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db is nil")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ID returns the row id for path. It is stable across runs.
func ID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()
}

// Put replaces the stored rows with set in a single transaction.
func (s *Store) Put(ctx context.Context, set *embedding.Set) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings(id, position, path, dim, embedding) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range set.Paths {
		if _, err := stmt.ExecContext(ctx, ID(p), i, p, set.Dim, embedding.EncodeVector(set.Vectors[i])); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Load reads the stored rows back in insertion order.
func (s *Store) Load(ctx context.Context) (*embedding.Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, dim, embedding FROM embeddings ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var set *embedding.Set
	for rows.Next() {
		var (
			path string
			dim  int
			blob []byte
		)
		if err := rows.Scan(&path, &dim, &blob); err != nil {
			return nil, err
		}
		vec, err := embedding.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: %w", path, err)
		}
		if set == nil {
			set = embedding.New(dim)
		}
		if err := set.Append(path, vec); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if set == nil {
		set = embedding.New(0)
	}
	return set, nil
}

// Search returns the k stored rows most similar to query.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]embedding.Hit, error) {
	set, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := bruteforce.Build(set)
	if err != nil {
		return nil, err
	}
	return idx.Query(query, k)
}

// Package postgres stores snapshots in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/typeid"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	revision BIGINT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	node_count INTEGER NOT NULL,
	element_count INTEGER NOT NULL,
	document JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewPool connects to databaseURL and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// New connects and ensures the snapshots table exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Save(ctx context.Context, name string, snap model.Snapshot) (*store.Record, error) {
	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	rec := &store.Record{
		ID:       typeid.NewSnapshotID(),
		Name:     name,
		Snapshot: snap,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO snapshots (id, revision, name, node_count, element_count, document)
		SELECT $1, COALESCE(MAX(revision), 0) + 1, $2, $3, $4, $5 FROM snapshots
		RETURNING revision, created_at
	`, rec.ID, name, len(snap.Nodes), len(snap.Elements), doc).Scan(&rec.Revision, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	return rec, nil
}

func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, revision, name, document, created_at
		FROM snapshots ORDER BY revision DESC LIMIT 1
	`)
	return scanRecord(row)
}

func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, revision, name, document, created_at
		FROM snapshots WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (s *Store) List(ctx context.Context, limit int) ([]store.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, revision, name, node_count, element_count, created_at
		FROM snapshots ORDER BY revision DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var sum store.Summary
		if err := rows.Scan(&sum.ID, &sum.Revision, &sum.Name, &sum.Nodes, &sum.Elements, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*store.Record, error) {
	var (
		rec store.Record
		doc []byte
	)
	if err := row.Scan(&rec.ID, &rec.Revision, &rec.Name, &doc, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(doc, &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &rec, nil
}

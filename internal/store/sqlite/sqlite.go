// Package sqlite stores snapshots in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/typeid"
)

// Store implements store.Store using SQLite
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: writes are serialized anyway and ":memory:" must not
	// be split across connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		revision INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		node_count INTEGER NOT NULL,
		element_count INTEGER NOT NULL,
		document JSON NOT NULL,
		created_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores snap under the next revision.
func (s *Store) Save(ctx context.Context, name string, snap model.Snapshot) (*store.Record, error) {
	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(revision), 0) + 1 FROM snapshots`).Scan(&revision); err != nil {
		return nil, fmt.Errorf("failed to read revision: %w", err)
	}

	rec := &store.Record{
		ID:        typeid.NewSnapshotID(),
		Revision:  revision,
		Name:      name,
		Snapshot:  snap,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, revision, name, node_count, element_count, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Revision, rec.Name, len(snap.Nodes), len(snap.Elements), string(doc), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return rec, nil
}

func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, revision, name, document, created_at
		FROM snapshots ORDER BY revision DESC LIMIT 1
	`)
	return scanRecord(row)
}

func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, revision, name, document, created_at
		FROM snapshots WHERE id = ?
	`, id)
	return scanRecord(row)
}

// List returns the newest snapshots first.
func (s *Store) List(ctx context.Context, limit int) ([]store.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, revision, name, node_count, element_count, created_at
		FROM snapshots ORDER BY revision DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var (
			sum     store.Summary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.Revision, &sum.Name, &sum.Nodes, &sum.Elements, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

func scanRecord(row *sql.Row) (*store.Record, error) {
	var (
		rec     store.Record
		doc     string
		created string
	)
	if err := row.Scan(&rec.ID, &rec.Revision, &rec.Name, &doc, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse created_at %q: %w", v, err)
	}
	return t, nil
}

// Package store persists model snapshots. Implementations live in the
// postgres and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/eukleia/eukleia/internal/model"
)

var ErrNotFound = errors.New("snapshot not found")

// Record is one saved snapshot. Revision counts saves, starting at 1.
type Record struct {
	ID        string         `json:"id"`
	Revision  int64          `json:"revision"`
	Name      string         `json:"name"`
	Snapshot  model.Snapshot `json:"snapshot"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Summary is a Record without the snapshot body.
type Summary struct {
	ID        string    `json:"id"`
	Revision  int64     `json:"revision"`
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Elements  int       `json:"elements"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store interface {
	Save(ctx context.Context, name string, snap model.Snapshot) (*Record, error)
	Latest(ctx context.Context) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

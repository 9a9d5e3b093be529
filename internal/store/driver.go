package store

import (
	"context"

	"github.com/bwservicing/certtrack/internal/models"
)

// Executor runs single-table statements against already resolved and
// allow-listed physical tables. Drivers and their transactions implement it.
type Executor interface {
	Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error)
	Insert(ctx context.Context, table string, fields models.Row) (models.Row, error)
	Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error)
	Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error)
}

// Tx is a unit of work on one scoped connection. Locks taken with Lock are
// held until Commit or Rollback. Rollback after Commit is a no-op.
type Tx interface {
	Executor
	Lock(ctx context.Context, key string) error
	Commit() error
	Rollback() error
}

// Driver is a storage backend. There are two implementations, SQLDriver and
// RESTDriver, and one is picked at process start.
type Driver interface {
	Executor
	Name() string
	// Tables reports which of candidates currently exist.
	Tables(ctx context.Context, candidates []string) ([]string, error)
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

var (
	_ Driver = (*SQLDriver)(nil)
	_ Driver = (*RESTDriver)(nil)
)

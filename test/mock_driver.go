package test

import (
	"context"
	"sync"

	"github.com/bwservicing/certtrack/internal/models"
	"github.com/bwservicing/certtrack/internal/store"
)

// FaultyDriver wraps a driver and fails chosen inserts made inside
// transactions, for exercising rollback paths.
type FaultyDriver struct {
	store.Driver

	mu        sync.Mutex
	table     string
	skip      int
	err       error
	Begins    int
	Rollbacks int
}

// NewFaultyDriver wraps d without any fault armed.
func NewFaultyDriver(d store.Driver) *FaultyDriver {
	return &FaultyDriver{Driver: d}
}

// FailInsert makes the insert into table after skip successful ones fail
// once with err.
func (f *FaultyDriver) FailInsert(table string, skip int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table, f.skip, f.err = table, skip, err
}

func (f *FaultyDriver) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := f.Driver.Begin(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.Begins++
	f.mu.Unlock()
	return &faultyTx{Tx: tx, driver: f}, nil
}

func (f *FaultyDriver) fault(table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil || table != f.table {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	err := f.err
	f.err = nil
	return err
}

type faultyTx struct {
	store.Tx
	driver *FaultyDriver
}

func (t *faultyTx) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	if err := t.driver.fault(table); err != nil {
		return nil, err
	}
	return t.Tx.Insert(ctx, table, fields)
}

func (t *faultyTx) Rollback() error {
	t.driver.mu.Lock()
	t.driver.Rollbacks++
	t.driver.mu.Unlock()
	return t.Tx.Rollback()
}

var _ store.Driver = (*FaultyDriver)(nil)

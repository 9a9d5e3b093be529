package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/models"
)

// SQLDriver talks to a relational engine over a database/sql pool.
type SQLDriver struct {
	db      *sqlx.DB
	dialect Dialect
	locks   *keyedLocks
}

// NewSQLDriver wraps an open pool. The driver owns db from then on.
func NewSQLDriver(db *sql.DB, dialect Dialect) *SQLDriver {
	return &SQLDriver{
		db:      sqlx.NewDb(db, dialect.DriverName),
		dialect: dialect,
		locks:   newKeyedLocks(),
	}
}

func (d *SQLDriver) Name() string {
	return "sql/" + d.dialect.Name
}

func (d *SQLDriver) Dialect() Dialect {
	return d.dialect
}

// DB exposes the pool for migrations.
func (d *SQLDriver) DB() *sql.DB {
	return d.db.DB
}

func (d *SQLDriver) Close() error {
	return d.db.Close()
}

func (d *SQLDriver) Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error) {
	return d.statements(d.db).Select(ctx, q)
}

func (d *SQLDriver) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	return d.statements(d.db).Insert(ctx, table, fields)
}

func (d *SQLDriver) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error) {
	return d.statements(d.db).Update(ctx, table, fields, filters)
}

func (d *SQLDriver) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	return d.statements(d.db).Delete(ctx, table, filters)
}

func (d *SQLDriver) Tables(ctx context.Context, candidates []string) ([]string, error) {
	query, args, err := d.dialect.tablesQuery(candidates)
	if err != nil {
		return nil, err
	}

	rows, err := d.interceptor(d.db).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, d.dialect.classify(err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found = append(found, name)
	}
	return found, d.dialect.classify(rows.Err())
}

func (d *SQLDriver) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, d.dialect.classify(err)
	}
	return &sqlTx{tx: tx, driver: d, statements: d.statements(tx)}, nil
}

func (d *SQLDriver) interceptor(q sqlx.QueryerContext) QueryInterceptor {
	return QueryInterceptor{q: q, log: zap.S().Named("sql").With("dialect", d.dialect.Name)}
}

func (d *SQLDriver) statements(q sqlx.QueryerContext) *statements {
	return &statements{q: d.interceptor(q), dialect: d.dialect}
}

// statements builds and runs single-table statements on a pool or a transaction.
type statements struct {
	q       QueryInterceptor
	dialect Dialect
}

func (s *statements) Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error) {
	columns := q.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}

	b := s.dialect.builder().Select(columns...).From(q.Table)
	if len(q.Filters) > 0 {
		b = b.Where(s.eq(q.Filters))
	}
	for _, o := range q.Order {
		if o.Desc() {
			b = b.OrderBy(o.Column + " DESC")
		} else {
			b = b.OrderBy(o.Column + " ASC")
		}
	}
	limit := q.Limit
	if q.Single {
		limit = 1
	}
	b = s.dialect.paginate(b, limit, q.Offset)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, query, args)
}

func (s *statements) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	query, args, err := s.dialect.builder().Insert(table).
		SetMap(s.bindAll(fields)).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.rows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return rows[0], nil
}

func (s *statements) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error) {
	query, args, err := s.dialect.builder().Update(table).
		SetMap(s.bindAll(fields)).
		Where(s.eq(filters)).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, query, args)
}

func (s *statements) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	query, args, err := s.dialect.builder().Delete(table).
		Where(s.eq(filters)).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, query, args)
}

func (s *statements) eq(filters models.Filters) sq.Eq {
	eq := make(sq.Eq, len(filters))
	for k, v := range filters {
		eq[k] = s.dialect.bind(v)
	}
	return eq
}

func (s *statements) bindAll(fields models.Row) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = s.dialect.bind(v)
	}
	return out
}

func (s *statements) rows(ctx context.Context, query string, args []any) ([]models.Row, error) {
	rows, err := s.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, s.dialect.classify(err)
	}
	defer rows.Close()

	result := []models.Row{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, s.dialect.classify(err)
		}
		result = append(result, normalizeRow(m))
	}
	return result, s.dialect.classify(rows.Err())
}

func normalizeRow(m map[string]any) models.Row {
	row := make(models.Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[k] = v
	}
	return row
}

type sqlTx struct {
	tx         *sqlx.Tx
	driver     *SQLDriver
	statements *statements
	releases   []func()
	closed     bool
}

func (t *sqlTx) Select(ctx context.Context, q models.QueryDescriptor) ([]models.Row, error) {
	return t.statements.Select(ctx, q)
}

func (t *sqlTx) Insert(ctx context.Context, table string, fields models.Row) (models.Row, error) {
	return t.statements.Insert(ctx, table, fields)
}

func (t *sqlTx) Update(ctx context.Context, table string, fields models.Row, filters models.Filters) ([]models.Row, error) {
	return t.statements.Update(ctx, table, fields, filters)
}

func (t *sqlTx) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	return t.statements.Delete(ctx, table, filters)
}

func (t *sqlTx) Lock(ctx context.Context, key string) error {
	held, err := t.driver.dialect.lock(ctx, t.tx, key)
	if err != nil {
		return t.driver.dialect.classify(err)
	}
	if held {
		return nil
	}
	release, err := t.driver.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	t.releases = append(t.releases, release)
	return nil
}

func (t *sqlTx) Commit() error {
	if t.closed {
		return nil
	}
	defer t.release()
	return t.driver.dialect.classify(t.tx.Commit())
}

func (t *sqlTx) Rollback() error {
	if t.closed {
		return nil
	}
	defer t.release()
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *sqlTx) release() {
	t.closed = true
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

const (
	DialectDuckDB   = "duckdb"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect captures what differs between the relational engines the SQL
// driver speaks to.
type Dialect struct {
	Name       string
	DriverName string
	// advisoryLocks is true when the engine can hold a lock scoped to a
	// transaction; otherwise a process-local lock is used.
	advisoryLocks bool
	placeholder   sq.PlaceholderFormat
}

var (
	DuckDB   = Dialect{Name: DialectDuckDB, DriverName: "duckdb", placeholder: sq.Question}
	Postgres = Dialect{Name: DialectPostgres, DriverName: "pgx", placeholder: sq.Dollar, advisoryLocks: true}
	SQLite   = Dialect{Name: DialectSQLite, DriverName: "sqlite", placeholder: sq.Question}
)

func LookupDialect(name string) (Dialect, error) {
	switch name {
	case DialectDuckDB:
		return DuckDB, nil
	case DialectPostgres:
		return Postgres, nil
	case DialectSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
	}
}

func (d Dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}

func (d Dialect) tablesQuery(candidates []string) (string, []any, error) {
	if d.Name == DialectSQLite {
		return d.builder().Select("name").From("sqlite_master").
			Where(sq.Eq{"type": "table", "name": candidates}).ToSql()
	}
	return d.builder().Select("table_name").From("information_schema.tables").
		Where(sq.Eq{"table_name": candidates}).
		Where("table_schema = current_schema()").ToSql()
}

// paginate applies limit and offset. SQLite refuses OFFSET without LIMIT.
func (d Dialect) paginate(b sq.SelectBuilder, limit, offset uint64) sq.SelectBuilder {
	if limit > 0 {
		b = b.Limit(limit)
	}
	if offset > 0 {
		if limit == 0 && d.Name == DialectSQLite {
			b = b.Limit(math.MaxInt64)
		}
		b = b.Offset(offset)
	}
	return b
}

// lock takes a transaction-scoped advisory lock. It reports false when the
// engine has none and the caller must fall back to a process-local lock.
func (d Dialect) lock(ctx context.Context, tx *sqlx.Tx, key string) (bool, error) {
	if !d.advisoryLocks {
		return false, nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return true, err
}

// sqliteTimeLayout is fixed width so that text comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// bind converts a value into something the engine stores faithfully.
// modernc's sqlite driver would otherwise write time.Time using
// time.Time.String, which no reader parses back.
func (d Dialect) bind(v any) any {
	if d.Name != DialectSQLite {
		return v
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(sqliteTimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}

// classify maps engine errors onto the error taxonomy.
func (d Dialect) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return srvErrors.NewBackendUnavailableError(d.Name, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return srvErrors.NewBackendUnavailableError(d.Name, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return srvErrors.NewConflictError("unique constraint "+pgErr.ConstraintName, err)
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return srvErrors.NewConflictError("concurrent transaction", err)
		case pgErr.Code == "23502":
			return srvErrors.NewValidationError(pgErr.ColumnName, "must not be null")
		case strings.HasPrefix(pgErr.Code, "08"):
			return srvErrors.NewBackendUnavailableError(d.Name, err)
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Duplicate key"),
		strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "violates unique constraint"),
		strings.Contains(msg, "violates primary key constraint"):
		return srvErrors.NewConflictError("unique constraint", err)
	case strings.Contains(msg, "write-write conflict"),
		strings.Contains(msg, "Conflict on"),
		strings.Contains(msg, "database is locked"):
		return srvErrors.NewConflictError("concurrent transaction", err)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return srvErrors.NewValidationError("", "a required column is null")
	}
	return err
}

package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

// column types substituted into the migration files per dialect
var types = map[string]map[string]string{
	"duckdb": {
		"{{id}}":        "VARCHAR",
		"{{text}}":      "VARCHAR",
		"{{money}}":     "DOUBLE",
		"{{date}}":      "DATE",
		"{{timestamp}}": "TIMESTAMP",
	},
	"postgres": {
		"{{id}}":        "TEXT",
		"{{text}}":      "TEXT",
		"{{money}}":     "DOUBLE PRECISION",
		"{{date}}":      "DATE",
		"{{timestamp}}": "TIMESTAMPTZ",
	},
	"sqlite": {
		"{{id}}":        "TEXT",
		"{{text}}":      "TEXT",
		"{{money}}":     "REAL",
		"{{date}}":      "TEXT",
		"{{timestamp}}": "TEXT",
	},
}

type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded migrations rendered for dialect, in version order.
func Load(dialect string) ([]Migration, error) {
	replacements, ok := types[dialect]
	if !ok {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}

	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		name := e.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s has an invalid version: %w", name, err)
		}

		raw, err := files.ReadFile(path.Join("sql", name))
		if err != nil {
			return nil, err
		}
		body := string(raw)
		for k, v := range replacements {
			body = strings.ReplaceAll(body, k, v)
		}
		out = append(out, Migration{Version: version, Name: strings.TrimSuffix(name, ".sql"), SQL: body})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every migration not yet recorded in schema_migrations. Each
// migration runs in its own transaction.
func Run(ctx context.Context, db *sql.DB, dialect string) error {
	log := zap.S().Named("migrations")

	all, err := Load(dialect)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name %s NOT NULL)`,
		types[dialect]["{{text}}"],
	)); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range all {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, dialect, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		log.Infow("applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, dialect string, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insert := `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`
	if dialect == "postgres" {
		insert = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
	}
	if _, err := tx.ExecContext(ctx, insert, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}

// statements splits a migration file on semicolons. Migration files contain
// no string literals holding a semicolon.
func statements(body string) []string {
	var out []string
	for _, s := range strings.Split(body, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

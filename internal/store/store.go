package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/bwservicing/certtrack/internal/config"
	"github.com/bwservicing/certtrack/internal/store/migrations"
)

// Store wires the active driver with the resolver, the adapter, the sequence
// generator and the record writer.
type Store struct {
	driver    Driver
	resolver  *TableResolver
	adapter   *Adapter
	sequences *SequenceGenerator
	writer    *RecordWriter
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	adapter []AdapterOption
	writer  []WriterOption
}

func WithAdapterOptions(opts ...AdapterOption) StoreOption {
	return func(o *storeOptions) { o.adapter = append(o.adapter, opts...) }
}

func WithWriterOptions(opts ...WriterOption) StoreOption {
	return func(o *storeOptions) { o.writer = append(o.writer, opts...) }
}

// NewStore builds a store on an already opened driver.
func NewStore(driver Driver, opts ...StoreOption) *Store {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	resolver := NewTableResolver(driver)
	adapter := NewAdapter(driver, resolver, o.adapter...)
	sequences := NewSequenceGenerator()
	return &Store{
		driver:    driver,
		resolver:  resolver,
		adapter:   adapter,
		sequences: sequences,
		writer:    NewRecordWriter(driver, adapter, sequences, o.writer...),
	}
}

// Open picks the backend named in cfg, the only place where the choice is
// made, and returns a ready store. Metrics are registered on reg when it is
// not nil.
func Open(ctx context.Context, cfg *config.Configuration, reg prometheus.Registerer) (*Store, error) {
	var driver Driver

	switch cfg.Storage.Backend {
	case "sql":
		dialect, err := LookupDialect(cfg.Storage.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := NewDB(dialect, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			if err := migrations.Run(ctx, db, dialect.Name); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}
		driver = NewSQLDriver(db, dialect)
	case "rest":
		rest, err := NewRESTDriver(RESTConfig{
			URL:        cfg.Storage.REST.URL,
			APIKey:     cfg.Storage.REST.APIKey,
			Timeout:    cfg.Storage.REST.Timeout,
			MaxRetries: cfg.Storage.REST.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		driver = rest
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	cert := CertificateNamespace
	cert.Prefix = cfg.Sequence.CertificatePrefix
	wo := WorkOrderNamespace
	wo.Prefix = cfg.Sequence.WorkOrderPrefix

	s := NewStore(driver,
		WithAdapterOptions(WithMetrics(NewMetrics(reg)), WithTimeout(cfg.Storage.Timeout)),
		WithWriterOptions(
			WithDefaultVATRate(cfg.Sequence.DefaultVATRate),
			WithMaxAttempts(cfg.Sequence.MaxWriteAttempts),
			WithNamespace(cert),
			WithNamespace(wo),
		),
	)
	if err := s.Warm(ctx); err != nil {
		s.Close()
		return nil, err
	}

	zap.S().Named("store").Infow("storage ready", "driver", driver.Name())
	return s, nil
}

// NewDB opens a pool for dialect. An empty dsn or ":memory:" opens a private
// in-memory database where the engine supports it.
func NewDB(dialect Dialect, dsn string) (*sql.DB, error) {
	if dsn == ":memory:" && dialect.Name == DialectDuckDB {
		dsn = ""
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if dialect.Name == DialectSQLite {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", dialect.Name, err)
	}
	return db, nil
}

// Warm resolves every registered entity so that later lookups never need a
// catalog query while a transaction holds the only connection.
func (s *Store) Warm(ctx context.Context) error {
	for _, name := range Entities() {
		entity, _ := LookupEntity(name)
		if _, err := s.resolver.Resolve(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// Refresh drops cached table resolutions, e.g. after migrating.
func (s *Store) Refresh(ctx context.Context) error {
	s.resolver.Invalidate()
	return s.Warm(ctx)
}

func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) Adapter() *Adapter {
	return s.adapter
}

func (s *Store) Sequences() *SequenceGenerator {
	return s.sequences
}

func (s *Store) Writer() *RecordWriter {
	return s.writer
}

func (s *Store) Resolver() *TableResolver {
	return s.resolver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/memengine"
	"github.com/librarydesk/lending-engine/lending/sqlengine"
)

// Instruments are the observability hooks handed to the backend and the engine. Nil fields are skipped.
type Instruments struct {
	Logger           lending.Logger
	ContextualLogger lending.ContextualLogger
	Metrics          lending.MetricsCollector
	Tracing          lending.TracingCollector

	// StoreLogger replaces ContextualLogger for the SQL store when set.
	StoreLogger lending.ContextualLogger
}

// Backend is an opened lending.Backend together with its schema migration and cleanup.
type Backend struct {
	lending.Backend
	name    string
	migrate func(ctx context.Context) error
	closers []func()
}

// Name returns the configured backend name.
func (b *Backend) Name() string {
	return b.name
}

// Migrate creates the schema if the backend has one.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.migrate == nil {
		return nil
	}

	return b.migrate(ctx)
}

// Close releases the database handles, last opened first.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// OpenBackend opens the backend selected by cfg. SQL backends are not migrated, call Migrate.
func OpenBackend(ctx context.Context, cfg Config, instruments Instruments) (*Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return openMemory(cfg, instruments)
	case BackendSQLite:
		return openSQLite(cfg, instruments)
	case BackendPostgres:
		return openPostgres(ctx, cfg, instruments)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func openMemory(cfg Config, instruments Instruments) (*Backend, error) {
	var options []memengine.Option
	if instruments.Logger != nil {
		options = append(options, memengine.WithLogger(instruments.Logger))
	}

	var (
		store *memengine.Store
		err   error
	)

	if cfg.SnapshotPath == "" {
		store, err = memengine.New(options...)
	} else {
		store, err = memengine.Open(cfg.SnapshotPath, options...)
	}

	if err != nil {
		return nil, err
	}

	return &Backend{Backend: store, name: BackendMemory}, nil
}

func openSQLite(cfg Config, instruments Instruments) (*Backend, error) {
	db, err := sqlengine.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	store, err := sqlengine.NewFromSQLDB(db, sqlengine.DialectSQLite, instruments.sqlOptions()...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{
		Backend: store,
		name:    BackendSQLite,
		migrate: store.Migrate,
		closers: []func(){func() { _ = db.Close() }},
	}, nil
}

func openPostgres(ctx context.Context, cfg Config, instruments Instruments) (*Backend, error) {
	backend := &Backend{name: BackendPostgres}

	var (
		store *sqlengine.Store
		err   error
	)

	switch cfg.PostgresDriver {
	case DriverPGX:
		store, err = openPGXStore(ctx, cfg, instruments, backend)
	case DriverSQL:
		db, openErr := OpenPostgresSQLDB(ctx, cfg.PostgresDSN)
		if openErr != nil {
			return nil, errors.Join(lending.ErrPersistenceFailure, openErr)
		}
		backend.closers = append(backend.closers, func() { _ = db.Close() })
		store, err = sqlengine.NewFromSQLDB(db, sqlengine.DialectPostgres, instruments.sqlOptions()...)
	case DriverSQLX:
		db, openErr := OpenPostgresSQLX(ctx, cfg.PostgresDSN)
		if openErr != nil {
			return nil, errors.Join(lending.ErrPersistenceFailure, openErr)
		}
		backend.closers = append(backend.closers, func() { _ = db.Close() })
		store, err = sqlengine.NewFromSQLX(db, instruments.sqlOptions()...)
	default:
		err = fmt.Errorf("%w: unknown postgres driver %q", ErrInvalidConfig, cfg.PostgresDriver)
	}

	if err != nil {
		backend.Close()
		return nil, err
	}

	backend.Backend = store
	backend.migrate = store.Migrate

	return backend, nil
}

// openPGXStore connects the primary and, when configured, the read replica.
func openPGXStore(ctx context.Context, cfg Config, instruments Instruments, backend *Backend) (*sqlengine.Store, error) {
	primary, err := OpenPGXPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, errors.Join(lending.ErrPersistenceFailure, err)
	}
	backend.closers = append(backend.closers, primary.Close)

	if cfg.PostgresReplicaDSN == "" {
		return sqlengine.NewFromPGXPool(primary, instruments.sqlOptions()...)
	}

	var replica *pgxpool.Pool
	if replica, err = OpenPGXPool(ctx, cfg.PostgresReplicaDSN); err != nil {
		return nil, errors.Join(lending.ErrPersistenceFailure, err)
	}
	backend.closers = append(backend.closers, replica.Close)

	return sqlengine.NewFromPGXPoolWithReplica(primary, replica, instruments.sqlOptions()...)
}

func (i Instruments) sqlOptions() []sqlengine.Option {
	var options []sqlengine.Option

	if i.Logger != nil {
		options = append(options, sqlengine.WithLogger(i.Logger))
	}

	switch {
	case i.StoreLogger != nil:
		options = append(options, sqlengine.WithContextualLogger(i.StoreLogger))
	case i.ContextualLogger != nil:
		options = append(options, sqlengine.WithContextualLogger(i.ContextualLogger))
	}

	if i.Metrics != nil {
		options = append(options, sqlengine.WithMetrics(i.Metrics))
	}

	if i.Tracing != nil {
		options = append(options, sqlengine.WithTracing(i.Tracing))
	}

	return options
}

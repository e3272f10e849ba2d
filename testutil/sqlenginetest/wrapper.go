package sqlenginetest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/internal/config"
	"github.com/librarydesk/lending-engine/lending/sqlengine"
)

// Adapter type constants
const (
	TypeSQLite  = "sqlite"
	TypePGXPool = "pgx.pool"
	TypeSQLDB   = "sql.db"
	TypeSQLXDB  = "sqlx.db"
)

// Wrapper abstracts over the database handles behind a sqlengine.Store.
type Wrapper interface {
	Store() *sqlengine.Store
	// Exec runs raw SQL next to the store, e.g. to corrupt rows in error-path tests.
	Exec(ctx context.Context, query string) error
	Close()
}

type pgxPoolWrapper struct {
	pool  *pgxpool.Pool
	store *sqlengine.Store
}

func (w *pgxPoolWrapper) Store() *sqlengine.Store { return w.store }

func (w *pgxPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *pgxPoolWrapper) Close() { w.pool.Close() }

type sqlDBWrapper struct {
	db    *sql.DB
	store *sqlengine.Store
}

func (w *sqlDBWrapper) Store() *sqlengine.Store { return w.store }

func (w *sqlDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *sqlDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// AdapterType returns the adapter selected by ADAPTER_TYPE.
func AdapterType() string {
	adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE"))
	if adapterType == "" {
		return TypeSQLite
	}

	return adapterType
}

// CreateWrapper creates a migrated, empty store on the adapter selected by ADAPTER_TYPE.
// The wrapper is closed when the test ends.
func CreateWrapper(t testing.TB, options ...sqlengine.Option) Wrapper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wrapper Wrapper

	switch adapterType := AdapterType(); adapterType {
	case TypeSQLite:
		db, err := sqlengine.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
		require.NoError(t, err, "error opening sqlite database in test setup")

		store, err := sqlengine.NewFromSQLDB(db, sqlengine.DialectSQLite, options...)
		require.NoError(t, err, "creating the store failed")

		wrapper = &sqlDBWrapper{db: db, store: store}

	case TypePGXPool:
		pool, err := config.OpenPGXPool(ctx, requirePostgresDSN(t))
		if err != nil {
			t.Skipf("postgres is unreachable: %v", err)
		}

		store, err := sqlengine.NewFromPGXPool(pool, options...)
		require.NoError(t, err, "creating the store failed")

		wrapper = &pgxPoolWrapper{pool: pool, store: store}

	case TypeSQLDB:
		db, err := config.OpenPostgresSQLDB(ctx, requirePostgresDSN(t))
		if err != nil {
			t.Skipf("postgres is unreachable: %v", err)
		}

		store, err := sqlengine.NewFromSQLDB(db, sqlengine.DialectPostgres, options...)
		require.NoError(t, err, "creating the store failed")

		wrapper = &sqlDBWrapper{db: db, store: store}

	case TypeSQLXDB:
		db, err := config.OpenPostgresSQLX(ctx, requirePostgresDSN(t))
		if err != nil {
			t.Skipf("postgres is unreachable: %v", err)
		}

		store, err := sqlengine.NewFromSQLX(db, options...)
		require.NoError(t, err, "creating the store failed")

		wrapper = &sqlDBWrapper{db: db.DB, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}

	t.Cleanup(wrapper.Close)

	require.NoError(t, wrapper.Store().Migrate(ctx), "migrating the schema failed")
	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp deletes every row, children first.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	for _, table := range []string{"borrow_records", "members", "books"} {
		require.NoError(t, wrapper.Exec(context.Background(), "DELETE FROM "+table), "cleaning up table %s failed", table)
	}
}

func requirePostgresDSN(t testing.TB) string {
	t.Helper()

	dsn := PostgresDSN()
	if dsn == "" {
		t.Skipf("%s is not set", EnvPostgresDSN)
	}

	return dsn
}

package sqlengine

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/librarydesk/lending-engine/lending"
)

// SQLiteDriverName is the database/sql driver name registered by modernc.org/sqlite.
const SQLiteDriverName = "sqlite"

// ErrEmptySQLitePath is returned when an empty database file path is supplied.
var ErrEmptySQLitePath = errors.New("sqlite database path must not be empty")

// SQLiteDSN returns the connection string for the database file at path. Every connection
// waits up to 5s for a busy database, enforces foreign keys, uses the WAL journal
// and starts its transactions with BEGIN IMMEDIATE.
func SQLiteDSN(path string) string {
	query := url.Values{}
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "journal_mode(WAL)")
	query.Set("_txlock", "immediate")

	return "file:" + path + "?" + query.Encode()
}

// OpenSQLite opens the database file at path, creating it and its directory when missing.
// SQLite allows a single writer, so the pool is limited to one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, ErrEmptySQLitePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Join(lending.ErrPersistenceFailure, err)
	}

	db, err := sql.Open(SQLiteDriverName, SQLiteDSN(path))
	if err != nil {
		return nil, errors.Join(lending.ErrPersistenceFailure, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(lending.ErrPersistenceFailure, err)
	}

	return db, nil
}

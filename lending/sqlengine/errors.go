package sqlengine

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/librarydesk/lending-engine/lending"
)

const (
	sqliteResultCodeMask = 0xff
)

// mapError classifies a driver error. The result always matches lending.ErrPersistenceFailure
// or lending.ErrDuplicateKey and keeps the driver error in its chain.
func mapError(err error) error {
	code, ok := sqlStateOf(err)
	if ok {
		switch code {
		case pgerrcode.UniqueViolation:
			return errors.Join(lending.ErrDuplicateKey, err)
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return errors.Join(lending.ErrTransient, err)
		}

		return errors.Join(lending.ErrPersistenceFailure, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Join(lending.ErrDuplicateKey, err)
		case sqliteErr.Code()&sqliteResultCodeMask == sqlite3.SQLITE_BUSY,
			sqliteErr.Code()&sqliteResultCodeMask == sqlite3.SQLITE_LOCKED:
			return errors.Join(lending.ErrTransient, err)
		}
	}

	return errors.Join(lending.ErrPersistenceFailure, err)
}

// sqlStateOf extracts the SQLSTATE of a PostgreSQL error from pgx or lib/pq.
func sqlStateOf(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}

// describeDuplicate replaces the driver detail of a mapped duplicate key error with what collided.
func describeDuplicate(mapped error, what string) error {
	if errors.Is(mapped, lending.ErrDuplicateKey) {
		return fmt.Errorf("%w: %s", lending.ErrDuplicateKey, what)
	}

	return mapped
}

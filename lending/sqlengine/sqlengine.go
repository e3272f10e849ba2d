package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/sqlengine/internal/adapters"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const (
	tableBooks   = "books"
	tableMembers = "members"
	tableRecords = "borrow_records"

	colISBN             = "isbn"
	colTitle            = "title"
	colAuthor           = "author"
	colCategory         = "category"
	colPublisher        = "publisher"
	colPublicationDate  = "publication_date"
	colTotalCopies      = "total_copies"
	colAvailableCopies  = "available_copies"
	colActive           = "active"
	colID               = "id"
	colFirstName        = "first_name"
	colLastName         = "last_name"
	colEmail            = "email"
	colPhone            = "phone"
	colMembershipType   = "membership_type"
	colMembershipExpiry = "membership_expiry"
	colBorrowedCount    = "borrowed_count"
	colRegistrationDate = "registration_date"
	colRecordID         = "record_id"
	colMemberID         = "member_id"
	colBorrowDate       = "borrow_date"
	colDueDate          = "due_date"
	colReturnDate       = "return_date"
	colStatus           = "status"
	colFineAmountCents  = "fine_amount_cents"
)

var (
	// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrUnsupportedDialect is returned for dialects other than DialectPostgres and DialectSQLite.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
)

// Store is a lending.Backend on a SQL database.
type Store struct {
	db               adapters.DBAdapter
	dialectName      string
	dialect          goqu.DialectWrapper
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// NewFromPGXPool creates a PostgreSQL Store using a pgx Pool with optional configuration.
func NewFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), DialectPostgres, options...)
}

// NewFromPGXPoolWithReplica creates a PostgreSQL Store whose plain reads go to replica
// when the context asks for lending.EventualConsistency. Units of work always use the primary.
func NewFromPGXPoolWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if primary == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(primary, replica), DialectPostgres, options...)
}

// NewFromSQLDB creates a Store using a sql.DB opened with a PostgreSQL or SQLite driver.
func NewFromSQLDB(db *sql.DB, dialect string, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), dialect, options...)
}

// NewFromSQLX creates a Store using a sqlx.DB. The dialect follows from the driver name.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	dialect, err := DialectForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}

	return newStore(adapters.NewSQLXAdapter(db), dialect, options...)
}

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driverName string) (string, error) {
	switch driverName {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: driver %q", ErrUnsupportedDialect, driverName)
	}
}

func newStore(db adapters.DBAdapter, dialect string, options ...Option) (*Store, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}

	s := &Store{
		db:          db,
		dialectName: dialect,
		dialect:     goqu.Dialect(dialect),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Dialect returns the SQL dialect of the Store.
func (s *Store) Dialect() string {
	return s.dialectName
}

// Stores returns stores whose every write is its own statement.
func (s *Store) Stores() lending.Stores {
	v := &view{store: s}
	return lending.Stores{Catalog: v, Members: v, Ledger: v}
}

// InTransaction runs fn in a database transaction. The transaction is rolled back when fn fails.
// A failed COMMIT is reported as lending.ErrCommitFailed, except for serialization failures,
// after which the database has discarded the transaction and lending.ErrTransient is returned.
func (s *Store) InTransaction(ctx context.Context, fn lending.TxFunc) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, spanNameTransaction)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		mapped := s.failed(ctx, logMsgBeginFailed, "", err)
		s.finishSpan(span, mapped, start)

		return mapped
	}

	v := &view{store: s, tx: tx}
	if err := fn(ctx, lending.Stores{Catalog: v, Members: v, Ledger: v}); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
			err = errors.Join(err, rollbackErr)
		}

		s.recordTransaction(ctx, statusRolledBack, time.Since(start))
		s.finishSpan(span, err, start)

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mapped := s.failed(ctx, logMsgCommitFailed, "", err)
		if !lending.IsTransient(mapped) {
			mapped = errors.Join(lending.ErrCommitFailed, mapped)
		}

		s.recordTransaction(ctx, statusError, time.Since(start))
		s.finishSpan(span, mapped, start)

		return mapped
	}

	s.recordTransaction(ctx, statusCommitted, time.Since(start))
	s.finishSpan(span, nil, start)

	return nil
}

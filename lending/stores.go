package lending

import (
	"context"
	"time"
)

// CatalogStore holds Book records. Lookups of unknown isbns fail with ErrBookNotFound.
type CatalogStore interface {
	CreateBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, isbn string) (Book, error)
	// GetBookForUpdate is GetBook that additionally locks the row until the transaction ends, where supported.
	GetBookForUpdate(ctx context.Context, isbn string) (Book, error)
	SearchBooks(ctx context.Context, term string) ([]Book, error)
	UpdateBook(ctx context.Context, book Book) error
	SoftDeleteBook(ctx context.Context, isbn string) error
	ListAvailableBooks(ctx context.Context) ([]Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
}

// MembershipStore holds Member records. Lookups of unknown ids fail with ErrMemberNotFound.
type MembershipStore interface {
	CreateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	// GetMemberForUpdate is GetMember that additionally locks the row until the transaction ends, where supported.
	GetMemberForUpdate(ctx context.Context, id string) (Member, error)
	SearchMembers(ctx context.Context, term string) ([]Member, error)
	UpdateMember(ctx context.Context, member Member) error
	SoftDeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context) ([]Member, error)
}

// LoanLedger holds BorrowRecord records. Lookups of unknown ids fail with ErrRecordNotFound.
type LoanLedger interface {
	CreateRecord(ctx context.Context, record BorrowRecord) error
	GetRecord(ctx context.Context, recordID string) (BorrowRecord, error)
	// GetRecordForUpdate is GetRecord that additionally locks the row until the transaction ends, where supported.
	GetRecordForUpdate(ctx context.Context, recordID string) (BorrowRecord, error)
	// ListByMember returns the member's records, newest borrow first.
	ListByMember(ctx context.Context, memberID string) ([]BorrowRecord, error)
	// ListActiveByMember returns the member's BORROWED records, earliest due date first.
	ListActiveByMember(ctx context.Context, memberID string) ([]BorrowRecord, error)
	// ListOverdue returns all BORROWED records due before asOf, earliest due date first.
	ListOverdue(ctx context.Context, asOf time.Time) ([]BorrowRecord, error)
	UpdateRecord(ctx context.Context, record BorrowRecord) error
	// ListAll returns every record, newest borrow first.
	ListAll(ctx context.Context) ([]BorrowRecord, error)
}

// Stores bundles the three stores a lending transaction touches.
type Stores struct {
	Catalog CatalogStore
	Members MembershipStore
	Ledger  LoanLedger
}

// TxFunc is the body of a unit of work. Returning an error discards every write made through tx.
type TxFunc func(ctx context.Context, tx Stores) error

// Backend is what the lending engine needs from a persistence implementation.
type Backend interface {
	// Stores returns stores for plain reads and single writes outside a unit of work.
	Stores() Stores
	// InTransaction runs fn as one unit of work: either every write made through tx
	// becomes visible or none does. A failure to make the writes durable after fn
	// returned nil is reported as an error wrapping ErrCommitFailed.
	InTransaction(ctx context.Context, fn TxFunc) error
}

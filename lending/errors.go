package lending

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the stores and the engine matches exactly one of them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrMemberIneligible   = errors.New("member is not eligible to borrow")
	ErrBookUnavailable    = errors.New("book is unavailable")
	ErrAlreadyReturned    = errors.New("borrow record already returned")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrInvalidInput       = errors.New("invalid input")
)

// Specific NotFound errors.
var (
	ErrBookNotFound   = fmt.Errorf("book %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrRecordNotFound = fmt.Errorf("borrow record %w", ErrNotFound)
)

// ErrTransient marks a persistence failure that may succeed when the transaction is retried,
// e.g. a serialization failure or a busy database file.
var ErrTransient = fmt.Errorf("%w: transient conflict", ErrPersistenceFailure)

// ErrCommitFailed is returned by Backend.InTransaction when the unit of work could not be made durable.
// Whether any of its writes persisted is unknown.
var ErrCommitFailed = fmt.Errorf("%w: commit failed", ErrPersistenceFailure)

// ErrNilBackend is returned when a nil backend is supplied.
var ErrNilBackend = errors.New("backend must not be nil")

// ErrorKind is the stable, machine readable classification of an error.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindNotFound           ErrorKind = "NotFound"
	KindDuplicateKey       ErrorKind = "DuplicateKey"
	KindMemberIneligible   ErrorKind = "MemberIneligible"
	KindBookUnavailable    ErrorKind = "BookUnavailable"
	KindAlreadyReturned    ErrorKind = "AlreadyReturned"
	KindPersistenceFailure ErrorKind = "PersistenceFailure"
	KindInvalidInput       ErrorKind = "InvalidInput"
	KindUnknown            ErrorKind = "Unknown"
)

// KindOf extracts the ErrorKind of err. It returns KindNone for nil and KindUnknown
// for errors that did not originate in this module (e.g. context cancellation).
// A CommitError is always a PersistenceFailure, whatever its cause.
func KindOf(err error) ErrorKind {
	var commitErr *CommitError

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &commitErr):
		return KindPersistenceFailure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrMemberIneligible):
		return KindMemberIneligible
	case errors.Is(err, ErrBookUnavailable):
		return KindBookUnavailable
	case errors.Is(err, ErrAlreadyReturned):
		return KindAlreadyReturned
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrPersistenceFailure):
		return KindPersistenceFailure
	default:
		return KindUnknown
	}
}

// IsTransient reports whether err is a persistence failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// CommitStep names one write of a lending transaction's commit phase.
type CommitStep string

const (
	StepCreateRecord CommitStep = "create_record"
	StepUpdateRecord CommitStep = "update_record"
	StepUpdateBook   CommitStep = "update_book"
	StepUpdateMember CommitStep = "update_member"
	StepCommit       CommitStep = "commit"
)

// CommitError reports a persistence failure after the commit phase of Borrow or Return started.
// It carries enough detail to reconcile the three records by hand.
type CommitError struct {
	Operation  string
	RecordID   string
	MemberID   string
	ISBN       string
	Completed  []CommitStep
	Failed     CommitStep
	RolledBack bool
	Err        error
}

func (e *CommitError) Error() string {
	completed := make([]string, 0, len(e.Completed))
	for _, step := range e.Completed {
		completed = append(completed, string(step))
	}

	state := "partial writes discarded"
	if !e.RolledBack {
		state = "partial writes may be persisted"
	}

	return fmt.Sprintf(
		"%s: %s of record %s (member %s, isbn %s) failed at %s after [%s], %s: %v",
		ErrPersistenceFailure, e.Operation, e.RecordID, e.MemberID, e.ISBN,
		e.Failed, strings.Join(completed, ", "), state, e.Err,
	)
}

// Unwrap exposes both the PersistenceFailure kind and the underlying cause.
func (e *CommitError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}

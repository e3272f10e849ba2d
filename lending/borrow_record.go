package lending

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a BorrowRecord. BORROWED -> RETURNED is the only transition.
type Status string

const (
	StatusBorrowed Status = "BORROWED"
	StatusReturned Status = "RETURNED"
)

// BorrowRecord is one lending transaction. Records are never deleted.
type BorrowRecord struct {
	RecordID   string     `json:"recordId"`
	MemberID   string     `json:"memberId"`
	ISBN       string     `json:"isbn"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	Status     Status     `json:"status"`
	FineAmount Money      `json:"fineAmount"`
}

// NewRecordID generates a fresh unique record id.
func NewRecordID() string {
	return uuid.NewString()
}

// IsActive reports whether the record is an active loan.
func (r BorrowRecord) IsActive() bool {
	return r.Status == StatusBorrowed
}

// Returned returns a copy of the record transitioned to RETURNED on the given day with the given frozen fine.
func (r BorrowRecord) Returned(today time.Time, fine Money) BorrowRecord {
	returnDate := Today(today)
	r.ReturnDate = &returnDate
	r.Status = StatusReturned
	r.FineAmount = fine

	return r
}

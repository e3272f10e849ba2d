package engine

import (
	"context"

	"github.com/librarydesk/lending-engine/lending"
)

// MemberBorrowHistory returns all records of the member, newest borrow first.
func (e *Engine) MemberBorrowHistory(ctx context.Context, memberID string) ([]lending.BorrowRecord, error) {
	stores := e.backend.Stores()

	if _, err := stores.Members.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	return stores.Ledger.ListByMember(ctx, memberID)
}

// MemberActiveLoans returns the member's BORROWED records, earliest due date first.
func (e *Engine) MemberActiveLoans(ctx context.Context, memberID string) ([]lending.BorrowRecord, error) {
	stores := e.backend.Stores()

	if _, err := stores.Members.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	return stores.Ledger.ListActiveByMember(ctx, memberID)
}

// OverdueRecords returns the loans overdue today, earliest due date first.
// FineAmount of each returned record holds the fine owed as of today; nothing is stored.
func (e *Engine) OverdueRecords(ctx context.Context) ([]lending.BorrowRecord, error) {
	today := e.Today()

	records, err := e.backend.Stores().Ledger.ListOverdue(ctx, today)
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].FineAmount = e.policy.Fine(records[i], today)
	}

	return records, nil
}

// AllBorrowRecords returns every record, newest borrow first.
func (e *Engine) AllBorrowRecords(ctx context.Context) ([]lending.BorrowRecord, error) {
	return e.backend.Stores().Ledger.ListAll(ctx)
}

// TotalFines sums the fines of records as of today: frozen fines of returned records
// and the fines accrued so far by active ones. It reads no state.
func (e *Engine) TotalFines(records []lending.BorrowRecord) lending.Money {
	return e.policy.TotalFines(records, e.Today())
}

// MemberOutstandingFines returns the fines accrued today by the member's active loans.
func (e *Engine) MemberOutstandingFines(ctx context.Context, memberID string) (lending.Money, error) {
	active, err := e.MemberActiveLoans(ctx, memberID)
	if err != nil {
		return 0, err
	}

	return e.TotalFines(active), nil
}

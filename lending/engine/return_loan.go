package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Return closes an active loan and returns the RETURNED record with its frozen fine.
//
// Checks, in order: the record exists (ErrRecordNotFound) and is still BORROWED
// (ErrAlreadyReturned). On success the record gets today as return date and the fine
// owed today, the book's available copies rise by one (capped at its total) and the
// member's borrowed count drops by one (floored at zero), all in one backend transaction.
func (e *Engine) Return(ctx context.Context, recordID string) (lending.BorrowRecord, error) {
	ctx, obs := e.begin(ctx, operationReturn, spanAttrRecordID, recordID)

	record, err := e.returnLoan(ctx, recordID)
	if err != nil {
		e.end(ctx, obs, err)
		return lending.BorrowRecord{}, err
	}

	e.recordValue(ctx, metricFineAmount, record.FineAmount.Float(), map[string]string{labelOperation: operationReturn})
	e.end(ctx, obs, nil, logAttrMemberID, record.MemberID, logAttrISBN, record.ISBN, logAttrFine, record.FineAmount.String())

	return record, nil
}

func (e *Engine) returnLoan(ctx context.Context, recordID string) (lending.BorrowRecord, error) {
	// The record names the keys to lock. It is read again, locked, inside the transaction.
	existing, err := e.backend.Stores().Ledger.GetRecord(lending.WithStrongConsistency(ctx), recordID)
	if err != nil {
		return lending.BorrowRecord{}, err
	}

	if !existing.IsActive() {
		return lending.BorrowRecord{}, alreadyReturned(existing)
	}

	unlock, err := e.locks.lock(ctx, memberKey(existing.MemberID), bookKey(existing.ISBN))
	if err != nil {
		return lending.BorrowRecord{}, err
	}
	defer unlock()

	today := e.Today()

	var record lending.BorrowRecord
	err = e.withRetry(ctx, operationReturn, func(ctx context.Context) error {
		var txErr error
		record, txErr = e.returnTx(ctx, recordID, today)

		return txErr
	})

	return record, err
}

func (e *Engine) returnTx(ctx context.Context, recordID string, today time.Time) (lending.BorrowRecord, error) {
	var (
		returned lending.BorrowRecord
		phase    *commitPhase
	)

	err := e.backend.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		record, err := tx.Ledger.GetRecordForUpdate(ctx, recordID)
		if err != nil {
			return err
		}

		if !record.IsActive() {
			return alreadyReturned(record)
		}

		book, err := tx.Catalog.GetBookForUpdate(ctx, record.ISBN)
		if err != nil {
			return err
		}

		member, err := tx.Members.GetMemberForUpdate(ctx, record.MemberID)
		if err != nil {
			return err
		}

		returnDate := today
		if returnDate.Before(record.BorrowDate) {
			returnDate = record.BorrowDate
		}

		returned = record.Returned(returnDate, e.policy.Fine(record, returnDate))
		book.AvailableCopies = min(book.AvailableCopies+1, book.TotalCopies)
		member.BorrowedCount = max(member.BorrowedCount-1, 0)

		phase = &commitPhase{}

		return phase.run(
			commitWrite{lending.StepUpdateRecord, func() error { return tx.Ledger.UpdateRecord(ctx, returned) }},
			commitWrite{lending.StepUpdateBook, func() error { return tx.Catalog.UpdateBook(ctx, book) }},
			commitWrite{lending.StepUpdateMember, func() error { return tx.Members.UpdateMember(ctx, member) }},
		)
	})
	if err != nil {
		return lending.BorrowRecord{}, commitOutcome(phase, operationReturn, returned, err)
	}

	return returned, nil
}

func alreadyReturned(record lending.BorrowRecord) error {
	if record.ReturnDate != nil {
		return fmt.Errorf("%w: record %s was returned on %s",
			lending.ErrAlreadyReturned, record.RecordID, lending.FormatDate(*record.ReturnDate))
	}

	return fmt.Errorf("%w: record %s has status %s", lending.ErrAlreadyReturned, record.RecordID, record.Status)
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Borrow lends one copy of the book to the member and returns the new BORROWED record.
//
// Checks, in order: the member exists (ErrMemberNotFound), the member may borrow
// (ErrMemberIneligible), the book exists (ErrBookNotFound), a copy is available
// (ErrBookUnavailable). A failed check writes nothing. On success the record is created,
// the book's available copies drop by one and the member's borrowed count rises by one,
// all in one backend transaction. Failures after the writes started are *lending.CommitError.
func (e *Engine) Borrow(ctx context.Context, memberID, isbn string) (lending.BorrowRecord, error) {
	ctx, obs := e.begin(ctx, operationBorrow, spanAttrMemberID, memberID, spanAttrISBN, isbn)

	record, err := e.borrow(ctx, memberID, isbn)
	if err != nil {
		e.end(ctx, obs, err)
		return lending.BorrowRecord{}, err
	}

	e.end(ctx, obs, nil, logAttrRecordID, record.RecordID)

	return record, nil
}

func (e *Engine) borrow(ctx context.Context, memberID, isbn string) (lending.BorrowRecord, error) {
	unlock, err := e.locks.lock(ctx, memberKey(memberID), bookKey(isbn))
	if err != nil {
		return lending.BorrowRecord{}, err
	}
	defer unlock()

	today := e.Today()

	var record lending.BorrowRecord
	err = e.withRetry(ctx, operationBorrow, func(ctx context.Context) error {
		var txErr error
		record, txErr = e.borrowTx(ctx, memberID, isbn, today)

		return txErr
	})

	return record, err
}

func (e *Engine) borrowTx(ctx context.Context, memberID, isbn string, today time.Time) (lending.BorrowRecord, error) {
	var (
		record lending.BorrowRecord
		phase  *commitPhase
	)

	err := e.backend.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		member, err := tx.Members.GetMemberForUpdate(ctx, memberID)
		if err != nil {
			return err
		}

		if !e.policy.CanBorrow(member, today) {
			return fmt.Errorf("%w: member %s: %s",
				lending.ErrMemberIneligible, memberID, e.policy.IneligibilityReason(member, today))
		}

		book, err := tx.Catalog.GetBookForUpdate(ctx, isbn)
		if err != nil {
			return err
		}

		if !book.IsAvailable() {
			return fmt.Errorf("%w: isbn %s: %s", lending.ErrBookUnavailable, isbn, unavailabilityReason(book))
		}

		record = lending.BorrowRecord{
			RecordID:   e.newRecordID(),
			MemberID:   member.ID,
			ISBN:       book.ISBN,
			BorrowDate: today,
			DueDate:    e.policy.DueDate(today),
			Status:     lending.StatusBorrowed,
		}
		book.AvailableCopies--
		member.BorrowedCount++

		phase = &commitPhase{}

		return phase.run(
			commitWrite{lending.StepCreateRecord, func() error { return tx.Ledger.CreateRecord(ctx, record) }},
			commitWrite{lending.StepUpdateBook, func() error { return tx.Catalog.UpdateBook(ctx, book) }},
			commitWrite{lending.StepUpdateMember, func() error { return tx.Members.UpdateMember(ctx, member) }},
		)
	})
	if err != nil {
		return lending.BorrowRecord{}, commitOutcome(phase, operationBorrow, record, err)
	}

	return record, nil
}

func unavailabilityReason(book lending.Book) string {
	if !book.Active {
		return "book is retired"
	}

	return fmt.Sprintf("all %d copies are on loan", book.TotalCopies)
}

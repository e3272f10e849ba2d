package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/engine"
)

func Test_New_Rejects_InvalidConfiguration(t *testing.T) {
	store := newHarness(t).store

	_, nilBackendErr := engine.New(nil)
	_, policyErr := engine.New(store, engine.WithPolicy(lending.Policy{}))
	_, clockErr := engine.New(store, engine.WithClock(nil))
	_, attemptsErr := engine.New(store, engine.WithMaxAttempts(0))

	assert.ErrorIs(t, nilBackendErr, lending.ErrNilBackend)
	assert.ErrorIs(t, policyErr, lending.ErrInvalidPolicy)
	assert.ErrorIs(t, clockErr, engine.ErrNilClock)
	assert.ErrorIs(t, attemptsErr, engine.ErrInvalidMaxAttempts)
}

func Test_Borrow_Success_CreatesRecordAndMovesCounts(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	h.seedBook(t, "111", "Dune", 2)
	h.seedMember(t, "M001", lending.MembershipStandard)

	// act
	record, err := h.engine.Borrow(ctx, "M001", "111")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.RecordID)
	assert.Equal(t, "M001", record.MemberID)
	assert.Equal(t, "111", record.ISBN)
	assert.Equal(t, day(2025, 3, 1), record.BorrowDate)
	assert.Equal(t, day(2025, 3, 15), record.DueDate)
	assert.Nil(t, record.ReturnDate)
	assert.Equal(t, lending.StatusBorrowed, record.Status)
	assert.Equal(t, lending.Money(0), record.FineAmount)

	assert.Equal(t, 1, h.book(t, "111").AvailableCopies)
	assert.Equal(t, 1, h.member(t, "M001").BorrowedCount)
	stored, err := h.store.Stores().Ledger.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, record, stored)
}

func Test_Borrow_Rejected_WhenMemberOrBookIsMissing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)

	_, memberErr := h.engine.Borrow(ctx, "M404", "111")
	_, bookErr := h.engine.Borrow(ctx, "M001", "404")

	assert.ErrorIs(t, memberErr, lending.ErrMemberNotFound)
	assert.ErrorIs(t, bookErr, lending.ErrBookNotFound)
	assert.Equal(t, lending.KindNotFound, lending.KindOf(memberErr))
	assert.Equal(t, lending.KindNotFound, lending.KindOf(bookErr))
	assert.Empty(t, h.records(t))
	assert.Equal(t, 0, h.member(t, "M001").BorrowedCount)
}

func Test_Borrow_Rejected_WhenMemberIsIneligible(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*lending.Member)
		reason string
	}{
		{
			name:   "inactive",
			mutate: func(m *lending.Member) { m.Active = false },
			reason: "membership is inactive",
		},
		{
			name:   "expired yesterday",
			mutate: func(m *lending.Member) { m.MembershipExpiry = day(2025, 2, 28) },
			reason: "membership expired on 2025-02-28",
		},
		{
			name:   "expires today",
			mutate: func(m *lending.Member) { m.MembershipExpiry = day(2025, 3, 1) },
			reason: "membership expired on 2025-03-01",
		},
		{
			name:   "at limit",
			mutate: func(m *lending.Member) { m.BorrowedCount = 3 },
			reason: "borrow limit of 3 reached",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			h := newHarness(t)
			h.seedBook(t, "111", "Dune", 1)
			member := h.seedMember(t, "M001", lending.MembershipStandard)
			tc.mutate(&member)
			require.NoError(t, h.store.Stores().Members.UpdateMember(ctx, member))

			// act
			_, err := h.engine.Borrow(ctx, "M001", "111")

			// assert
			assert.ErrorIs(t, err, lending.ErrMemberIneligible)
			assert.Contains(t, err.Error(), tc.reason)
			assert.Equal(t, 1, h.book(t, "111").AvailableCopies)
			assert.Empty(t, h.records(t))
		})
	}
}

func Test_Borrow_Rejected_WhenNoCopyIsAvailable(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	book := h.seedBook(t, "111", "Dune", 1)
	book.AvailableCopies = 0
	require.NoError(t, h.store.Stores().Catalog.UpdateBook(ctx, book))
	h.seedBook(t, "222", "Retired", 1)
	require.NoError(t, h.store.Stores().Catalog.SoftDeleteBook(ctx, "222"))
	h.seedMember(t, "M001", lending.MembershipStandard)

	// act
	_, lentOutErr := h.engine.Borrow(ctx, "M001", "111")
	_, retiredErr := h.engine.Borrow(ctx, "M001", "222")

	// assert
	assert.ErrorIs(t, lentOutErr, lending.ErrBookUnavailable)
	assert.ErrorIs(t, retiredErr, lending.ErrBookUnavailable)
	assert.Contains(t, retiredErr.Error(), "retired")
	assert.Equal(t, 0, h.book(t, "111").AvailableCopies)
	assert.Equal(t, 0, h.member(t, "M001").BorrowedCount)
	assert.Empty(t, h.records(t))
}

func Test_Borrow_StandardLimit_FourthSucceedsOnlyAfterAReturn(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	h.seedMember(t, "M001", lending.MembershipStandard)
	for _, isbn := range []string{"1", "2", "3", "4"} {
		h.seedBook(t, isbn, "Book "+isbn, 1)
	}

	var first lending.BorrowRecord
	for i, isbn := range []string{"1", "2", "3"} {
		record, err := h.engine.Borrow(ctx, "M001", isbn)
		require.NoError(t, err)
		if i == 0 {
			first = record
		}
	}

	// act
	_, fourthErr := h.engine.Borrow(ctx, "M001", "4")
	_, returnErr := h.engine.Return(ctx, first.RecordID)
	fourth, retryErr := h.engine.Borrow(ctx, "M001", "4")

	// assert
	assert.ErrorIs(t, fourthErr, lending.ErrMemberIneligible)
	require.NoError(t, returnErr)
	require.NoError(t, retryErr)
	assert.Equal(t, "4", fourth.ISBN)
	assert.Equal(t, 3, h.member(t, "M001").BorrowedCount)
}

func Test_Borrow_ConcurrentRequestsForLastCopy_ExactlyOneSucceeds(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	h.seedBook(t, "111", "Dune", 1)

	const borrowers = 12
	ids := make([]string, 0, borrowers)
	for i := 0; i < borrowers; i++ {
		id := "M" + string(rune('A'+i))
		h.seedMember(t, id, lending.MembershipStandard)
		ids = append(ids, id)
	}

	start := make(chan struct{})
	errs := make(chan error, borrowers)
	var wg sync.WaitGroup

	// act
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Borrow(ctx, id, "111")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	// assert
	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, lending.ErrBookUnavailable)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, h.book(t, "111").AvailableCopies)
	assert.Len(t, h.records(t), 1)
}

func Test_Borrow_ConcurrentRequestsOfOneMember_NeverExceedTheLimit(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	h.seedMember(t, "M001", lending.MembershipStudent)

	const requests = 9
	isbns := make([]string, 0, requests)
	for i := 0; i < requests; i++ {
		isbn := "isbn-" + string(rune('a'+i))
		h.seedBook(t, isbn, "Title "+isbn, 1)
		isbns = append(isbns, isbn)
	}

	var wg sync.WaitGroup
	errs := make(chan error, requests)

	// act
	for _, isbn := range isbns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Borrow(ctx, "M001", isbn)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// assert
	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, lending.ErrMemberIneligible)
	}

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, h.member(t, "M001").BorrowedCount)
	assert.Len(t, h.records(t), 5)
}

func Test_Borrow_HonorsCanceledContext(t *testing.T) {
	h := newHarness(t)
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Borrow(ctx, "M001", "111")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.records(t))
}

func Test_Borrow_CommitFailure_ReportsStepsAndPersistsNothing(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newFaultyHarness(t)
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)
	h.faulty.memberUpdateErr = errors.Join(lending.ErrPersistenceFailure, errDiskFull)

	// act
	_, err := h.engine.Borrow(ctx, "M001", "111")

	// assert
	var commitErr *lending.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, lending.KindPersistenceFailure, lending.KindOf(err))
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "borrow", commitErr.Operation)
	assert.Equal(t, "rec-1", commitErr.RecordID)
	assert.Equal(t, "M001", commitErr.MemberID)
	assert.Equal(t, "111", commitErr.ISBN)
	assert.Equal(t, []lending.CommitStep{lending.StepCreateRecord, lending.StepUpdateBook}, commitErr.Completed)
	assert.Equal(t, lending.StepUpdateMember, commitErr.Failed)
	assert.True(t, commitErr.RolledBack)
	assert.Equal(t, 1, h.faulty.Calls(), "non-transient failures are not retried")

	assert.Empty(t, h.records(t))
	assert.Equal(t, 1, h.book(t, "111").AvailableCopies)
	assert.Equal(t, 0, h.member(t, "M001").BorrowedCount)

	logged, found := h.logger.Find("error", "lending commit failed")
	require.True(t, found)
	assert.Equal(t, "create_record,update_book", logged.AttrString("completed_steps"))
	assert.Equal(t, "update_member", logged.AttrString("failed_step"))
	assert.Equal(t, "true", logged.AttrString("rolled_back"))
	assert.Equal(t, 1, h.metrics.CounterTotal("lending_commit_failures_total",
		map[string]string{"operation": "borrow", "failed_step": "update_member"}))
}

func Test_Borrow_RecordIDCollision_IsACommitFailure(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t, engine.WithRecordIDGenerator(func() string { return "fixed" }))
	h.seedBook(t, "111", "Dune", 1)
	h.seedBook(t, "222", "Snow Crash", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)
	h.seedMember(t, "M002", lending.MembershipStandard)

	_, err := h.engine.Borrow(ctx, "M001", "111")
	require.NoError(t, err)

	// act
	_, err = h.engine.Borrow(ctx, "M002", "222")

	// assert
	var commitErr *lending.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.ErrorIs(t, err, lending.ErrDuplicateKey)
	assert.Equal(t, lending.KindPersistenceFailure, lending.KindOf(err))
	assert.Empty(t, commitErr.Completed)
	assert.Equal(t, lending.StepCreateRecord, commitErr.Failed)
	assert.True(t, commitErr.RolledBack)

	assert.Equal(t, 1, h.book(t, "222").AvailableCopies)
	assert.Equal(t, 0, h.member(t, "M002").BorrowedCount)

	logged, found := h.logger.Find("error", "lending commit failed")
	require.True(t, found)
	assert.Equal(t, "create_record", logged.AttrString("failed_step"))
	assert.True(t, h.logger.HasLog("error", "lending operation failed"))
	assert.Equal(t, 1, h.metrics.CounterTotal("lending_commit_failures_total",
		map[string]string{"operation": "borrow", "failed_step": "create_record"}))
}

func Test_Borrow_RetriesTransientConflicts(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newFaultyHarness(t)
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)
	h.faulty.transientFailures = 2

	// act
	record, err := h.engine.Borrow(ctx, "M001", "111")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "111", record.ISBN)
	assert.Equal(t, 3, h.faulty.Calls())
	assert.Equal(t, 2, h.metrics.CounterTotal("lending_transaction_retries_total", map[string]string{"operation": "borrow"}))
	assert.Len(t, h.logger.Records("warn"), 2)
}

func Test_Borrow_GivesUpAfterMaxAttempts(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newFaultyHarness(t, engine.WithMaxAttempts(2))
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)
	h.faulty.transientFailures = 10

	// act
	_, err := h.engine.Borrow(ctx, "M001", "111")

	// assert
	assert.True(t, lending.IsTransient(err))
	assert.Equal(t, lending.KindPersistenceFailure, lending.KindOf(err))
	assert.Equal(t, 2, h.faulty.Calls())
	assert.Equal(t, 1, h.metrics.CounterTotal("lending_transaction_retries_exhausted_total", nil))
	assert.Empty(t, h.records(t))
}

func Test_Borrow_Observability_SpansAndMetricsByOutcome(t *testing.T) {
	// arrange
	ctx := context.Background()
	h := newHarness(t)
	h.seedBook(t, "111", "Dune", 1)
	h.seedMember(t, "M001", lending.MembershipStandard)

	// act
	_, okErr := h.engine.Borrow(ctx, "M001", "111")
	_, rejectedErr := h.engine.Borrow(ctx, "M001", "111")

	// assert
	require.NoError(t, okErr)
	require.Error(t, rejectedErr)

	spans := h.tracing.Spans("lending.borrow")
	require.Len(t, spans, 2)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "M001", spans[0].Attrs["member_id"])
	assert.Equal(t, "111", spans[0].Attrs["isbn"])
	assert.Equal(t, "rejected", spans[1].Status)
	assert.Equal(t, "BookUnavailable", spans[1].Attrs["error_kind"])

	assert.Equal(t, 1, h.metrics.CounterTotal("lending_operations_total", map[string]string{"operation": "borrow", "status": "success"}))
	assert.Equal(t, 1, h.metrics.CounterTotal("lending_operations_total", map[string]string{"operation": "borrow", "status": "rejected"}))
	assert.Len(t, h.metrics.Durations("lending_operation_duration_seconds"), 2)
	assert.True(t, h.logger.HasLog("info", "lending operation completed"))
	assert.True(t, h.logger.HasLog("info", "lending operation rejected"))
	assert.Empty(t, h.logger.Records("error"))
}

package sqlengine_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/engine"
	"github.com/librarydesk/lending-engine/lending/sqlengine"
	"github.com/librarydesk/lending-engine/testutil/fixtures"
	"github.com/librarydesk/lending-engine/testutil/observability/testdoubles"
	"github.com/librarydesk/lending-engine/testutil/sqlenginetest"
)

var day = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func Test_New_RejectsInvalidArguments(t *testing.T) {
	_, nilPoolErr := sqlengine.NewFromPGXPool(nil)
	_, nilReplicaErr := sqlengine.NewFromPGXPoolWithReplica(nil, nil)
	_, nilSQLErr := sqlengine.NewFromSQLDB(nil, sqlengine.DialectPostgres)
	_, nilSQLXErr := sqlengine.NewFromSQLX(nil)
	_, dialectErr := sqlengine.NewFromSQLDB(&sql.DB{}, "mysql")
	_, driverErr := sqlengine.DialectForDriver("mysql")

	assert.ErrorIs(t, nilPoolErr, sqlengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, nilReplicaErr, sqlengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, nilSQLErr, sqlengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, nilSQLXErr, sqlengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, dialectErr, sqlengine.ErrUnsupportedDialect)
	assert.ErrorIs(t, driverErr, sqlengine.ErrUnsupportedDialect)
}

func Test_DialectForDriver(t *testing.T) {
	for driver, expected := range map[string]string{
		"postgres": sqlengine.DialectPostgres,
		"pgx":      sqlengine.DialectPostgres,
		"sqlite":   sqlengine.DialectSQLite,
		"sqlite3":  sqlengine.DialectSQLite,
	} {
		dialect, err := sqlengine.DialectForDriver(driver)

		assert.NoError(t, err, driver)
		assert.Equal(t, expected, dialect, driver)
	}
}

func Test_OpenSQLite_RejectsEmptyPath(t *testing.T) {
	_, err := sqlengine.OpenSQLite("")

	assert.ErrorIs(t, err, sqlengine.ErrEmptySQLitePath)
}

func Test_Migrate_IsIdempotent(t *testing.T) {
	store := sqlenginetest.CreateWrapper(t).Store()

	assert.NoError(t, store.Migrate(context.Background()))
}

func Test_Catalog_CreateGetAndDuplicate(t *testing.T) {
	// arrange
	ctx := context.Background()
	catalog := sqlenginetest.CreateWrapper(t).Store().Stores().Catalog
	book := fixtures.Book("111", "Dune", 2)
	undated := fixtures.Book("222", "Snow Crash", 1)
	undated.PublicationDate = time.Time{}

	// act
	createErr := catalog.CreateBook(ctx, book)
	duplicateErr := catalog.CreateBook(ctx, book)
	require.NoError(t, catalog.CreateBook(ctx, undated))
	found, getErr := catalog.GetBook(ctx, "111")
	foundUndated, _ := catalog.GetBook(ctx, "222")
	_, missingErr := catalog.GetBook(ctx, "999")

	// assert
	assert.NoError(t, createErr)
	assert.ErrorIs(t, duplicateErr, lending.ErrDuplicateKey)
	assert.NoError(t, getErr)
	assert.Equal(t, book, found)
	assert.True(t, foundUndated.PublicationDate.IsZero())
	assert.ErrorIs(t, missingErr, lending.ErrBookNotFound)
	assert.Equal(t, lending.KindNotFound, lending.KindOf(missingErr))
}

func Test_Catalog_SearchAndListings(t *testing.T) {
	// arrange
	ctx := context.Background()
	catalog := sqlenginetest.CreateWrapper(t).Store().Stores().Catalog

	lent := fixtures.Book("333", "Neuromancer", 1)
	lent.AvailableCopies = 0

	for _, book := range []lending.Book{
		fixtures.Book("222", "Snow Crash", 1),
		fixtures.Book("111", "Dune", 2),
		lent,
		fixtures.Book("444", "Dune Messiah", 1),
	} {
		require.NoError(t, catalog.CreateBook(ctx, book))
	}

	require.NoError(t, catalog.SoftDeleteBook(ctx, "444"))

	// act
	dune, err := catalog.SearchBooks(ctx, "DUNE")
	require.NoError(t, err)
	byAuthor, err := catalog.SearchBooks(ctx, "author of snow")
	require.NoError(t, err)
	blank, err := catalog.SearchBooks(ctx, "  ")
	require.NoError(t, err)
	available, err := catalog.ListAvailableBooks(ctx)
	require.NoError(t, err)
	all, err := catalog.ListBooks(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, []string{"111"}, isbns(dune))
	assert.Equal(t, []string{"222"}, isbns(byAuthor))
	assert.Equal(t, []string{"111", "333", "222"}, isbns(blank))
	assert.Equal(t, []string{"111", "222"}, isbns(available))
	assert.Equal(t, []string{"111", "333", "222"}, isbns(all))
	assert.ErrorIs(t, catalog.SoftDeleteBook(ctx, "999"), lending.ErrBookNotFound)
	assert.ErrorIs(t, catalog.UpdateBook(ctx, fixtures.Book("999", "Ghost", 1)), lending.ErrBookNotFound)
}

func Test_Catalog_SearchMatchesWildcardCharactersLiterally(t *testing.T) {
	// arrange
	ctx := context.Background()
	catalog := sqlenginetest.CreateWrapper(t).Store().Stores().Catalog

	for _, book := range []lending.Book{
		fixtures.Book("111", "100% Pure", 1),
		fixtures.Book("222", "Snow Crash", 1),
		fixtures.Book("333", "Under_score", 1),
		fixtures.Book("444", `Back\slash`, 1),
	} {
		require.NoError(t, catalog.CreateBook(ctx, book))
	}

	for term, expected := range map[string][]string{
		"%":          {"111"},
		"_":          {"333"},
		`\`:          {"444"},
		"0% p":       {"111"},
		"snow_crash": {},
		"SNOW":       {"222"},
		"%snow":      {},
	} {
		// act
		found, err := catalog.SearchBooks(ctx, term)

		// assert
		require.NoError(t, err)
		assert.Equal(t, expected, isbns(found), "term %q", term)
	}
}

func Test_Membership_EmailIsUniqueIgnoringCase(t *testing.T) {
	// arrange
	ctx := context.Background()
	members := sqlenginetest.CreateWrapper(t).Store().Stores().Members

	first := fixtures.Member("M001", lending.MembershipStandard, day)
	second := fixtures.Member("M002", lending.MembershipStandard, day)
	second.Email = "M001@Library.TEST"

	// act
	require.NoError(t, members.CreateMember(ctx, first))
	createErr := members.CreateMember(ctx, second)
	duplicateIDErr := members.CreateMember(ctx, fixtures.Member("M001", lending.MembershipStudent, day))

	// assert
	assert.ErrorIs(t, createErr, lending.ErrDuplicateKey)
	assert.ErrorIs(t, duplicateIDErr, lending.ErrDuplicateKey)
	assert.NoError(t, members.UpdateMember(ctx, first))

	found, err := members.GetMember(ctx, "M001")
	require.NoError(t, err)
	assert.Equal(t, first, found)
}

func Test_Membership_SearchOrdersByName(t *testing.T) {
	// arrange
	ctx := context.Background()
	members := sqlenginetest.CreateWrapper(t).Store().Stores().Members

	grace := fixtures.Member("M002", lending.MembershipStudent, day)
	grace.Contact = lending.Contact{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.org"}
	ada := fixtures.Member("M001", lending.MembershipPremium, day)
	ada.Contact = lending.Contact{FirstName: "Ada", LastName: "Byron", Email: "ada@example.org"}
	gone := fixtures.Member("M003", lending.MembershipStandard, day)
	gone.Contact = lending.Contact{FirstName: "Alan", LastName: "Turing", Email: "alan@example.org"}

	for _, member := range []lending.Member{grace, ada, gone} {
		require.NoError(t, members.CreateMember(ctx, member))
	}
	require.NoError(t, members.SoftDeleteMember(ctx, "M003"))

	// act
	found, err := members.SearchMembers(ctx, "example.org")
	require.NoError(t, err)
	students, err := members.SearchMembers(ctx, "student")
	require.NoError(t, err)
	listed, err := members.ListMembers(ctx)
	require.NoError(t, err)

	// assert
	require.Len(t, found, 2)
	assert.Equal(t, "M001", found[0].ID)
	assert.Equal(t, "M002", found[1].ID)
	require.Len(t, students, 1)
	assert.Equal(t, "M002", students[0].ID)
	assert.Len(t, listed, 2)
	assert.ErrorIs(t, members.SoftDeleteMember(ctx, "M999"), lending.ErrMemberNotFound)
}

func Test_Ledger_Orderings(t *testing.T) {
	// arrange
	ctx := context.Background()
	stores := sqlenginetest.CreateWrapper(t).Store().Stores()
	policy := lending.DefaultPolicy()
	seedBooksAndMembers(t, stores, []string{"111", "222", "333", "444"}, []string{"M001", "M002"})

	r1 := fixtures.BorrowedRecord("r1", "M001", "111", day, policy)
	r2 := fixtures.BorrowedRecord("r2", "M001", "222", day.AddDate(0, 0, 5), policy)
	r3 := fixtures.BorrowedRecord("r3", "M002", "333", day.AddDate(0, 0, 2), policy)
	r4 := fixtures.BorrowedRecord("r4", "M001", "444", day.AddDate(0, 0, 1), policy).
		Returned(day.AddDate(0, 0, 3), lending.MoneyFromFloat(1.25))

	for _, record := range []lending.BorrowRecord{r1, r2, r3, r4} {
		require.NoError(t, stores.Ledger.CreateRecord(ctx, record))
	}

	asOf := day.AddDate(0, 0, 17) // r1 due day 14, r3 due day 16, r2 due day 19

	// act
	history, err := stores.Ledger.ListByMember(ctx, "M001")
	require.NoError(t, err)
	active, err := stores.Ledger.ListActiveByMember(ctx, "M001")
	require.NoError(t, err)
	overdue, err := stores.Ledger.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	all, err := stores.Ledger.ListAll(ctx)
	require.NoError(t, err)
	returned, err := stores.Ledger.GetRecord(ctx, "r4")
	require.NoError(t, err)
	borrowed, err := stores.Ledger.GetRecord(ctx, "r1")
	require.NoError(t, err)

	// assert
	assert.Equal(t, []string{"r2", "r4", "r1"}, recordIDs(history))
	assert.Equal(t, []string{"r1", "r2"}, recordIDs(active))
	assert.Equal(t, []string{"r1", "r3"}, recordIDs(overdue))
	assert.Equal(t, []string{"r2", "r3", "r4", "r1"}, recordIDs(all))
	assert.Equal(t, r4, returned)
	assert.Equal(t, "1.25", returned.FineAmount.String())
	assert.Nil(t, borrowed.ReturnDate)
	assert.Equal(t, r1, borrowed)
	assert.ErrorIs(t, stores.Ledger.CreateRecord(ctx, r1), lending.ErrDuplicateKey)
	assert.ErrorIs(t, stores.Ledger.UpdateRecord(ctx, fixtures.BorrowedRecord("r9", "M001", "111", day, policy)), lending.ErrRecordNotFound)
}

func Test_Ledger_RejectsRecordsOfUnknownMembers(t *testing.T) {
	ctx := context.Background()
	ledger := sqlenginetest.CreateWrapper(t).Store().Stores().Ledger

	err := ledger.CreateRecord(ctx, fixtures.BorrowedRecord("r1", "M404", "404", day, lending.DefaultPolicy()))

	assert.ErrorIs(t, err, lending.ErrPersistenceFailure)
}

func Test_InTransaction_DiscardsWritesOnError(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := sqlenginetest.CreateWrapper(t).Store()
	boom := errors.New("boom")

	// act
	err := store.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		if err := tx.Catalog.CreateBook(ctx, fixtures.Book("111", "Dune", 1)); err != nil {
			return err
		}

		staged, err := tx.Catalog.GetBookForUpdate(ctx, "111")
		if err != nil {
			return err
		}
		assert.Equal(t, "Dune", staged.Title)

		return boom
	})

	// assert
	assert.ErrorIs(t, err, boom)
	_, getErr := store.Stores().Catalog.GetBook(ctx, "111")
	assert.ErrorIs(t, getErr, lending.ErrBookNotFound)
}

func Test_InTransaction_CommitsAllWritesTogether(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := sqlenginetest.CreateWrapper(t).Store()
	seedBooksAndMembers(t, store.Stores(), []string{"111"}, []string{"M001"})

	// act
	err := store.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		book, err := tx.Catalog.GetBookForUpdate(ctx, "111")
		if err != nil {
			return err
		}
		book.AvailableCopies--

		member, err := tx.Members.GetMemberForUpdate(ctx, "M001")
		if err != nil {
			return err
		}
		member.BorrowedCount++

		record := fixtures.BorrowedRecord("r1", "M001", "111", day, lending.DefaultPolicy())
		if err := tx.Ledger.CreateRecord(ctx, record); err != nil {
			return err
		}

		if _, err := tx.Ledger.GetRecordForUpdate(ctx, "r1"); err != nil {
			return err
		}

		if err := tx.Catalog.UpdateBook(ctx, book); err != nil {
			return err
		}

		return tx.Members.UpdateMember(ctx, member)
	})

	// assert
	require.NoError(t, err)
	book, _ := store.Stores().Catalog.GetBook(ctx, "111")
	member, _ := store.Stores().Members.GetMember(ctx, "M001")
	_, recordErr := store.Stores().Ledger.GetRecord(ctx, "r1")
	assert.Equal(t, 0, book.AvailableCopies)
	assert.Equal(t, 1, member.BorrowedCount)
	assert.NoError(t, recordErr)
}

func Test_InTransaction_ReportsObservability(t *testing.T) {
	// arrange
	ctx := context.Background()
	logger := testdoubles.NewLoggerSpy()
	metrics := testdoubles.NewMetricsCollectorSpy()
	tracing := testdoubles.NewTracingCollectorSpy()
	store := sqlenginetest.CreateWrapper(t,
		sqlengine.WithContextualLogger(logger),
		sqlengine.WithMetrics(metrics),
		sqlengine.WithTracing(tracing),
	).Store()

	// act
	commitErr := store.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		return tx.Catalog.CreateBook(ctx, fixtures.Book("111", "Dune", 1))
	})
	rollbackErr := store.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		return tx.Catalog.CreateBook(ctx, fixtures.Book("111", "Dune", 1))
	})

	// assert
	require.NoError(t, commitErr)
	assert.ErrorIs(t, rollbackErr, lending.ErrDuplicateKey)
	assert.True(t, logger.HasLog(testdoubles.LevelDebug, "executed sql for: exec"))
	assert.True(t, logger.HasLog(testdoubles.LevelInfo, "schema migrated"))
	assert.Equal(t, 1, metrics.CounterTotal("sqlengine_transactions_total", map[string]string{"status": "committed"}))
	assert.Equal(t, 1, metrics.CounterTotal("sqlengine_transactions_total", map[string]string{"status": "rolled_back"}))
	assert.Equal(t, 1, metrics.CounterTotal("sqlengine_errors_total", map[string]string{"error_kind": "DuplicateKey"}))
	assert.NotEmpty(t, metrics.Durations("sqlengine_statement_duration_seconds"))

	spans := tracing.Spans("sqlengine.transaction")
	require.Len(t, spans, 2)
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "error", spans[1].Status)
	assert.Equal(t, "DuplicateKey", spans[1].Attrs["error_kind"])
	assert.True(t, spans[1].Finished)
}

func Test_Engine_BorrowAndReturnOnSQL(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := sqlenginetest.CreateWrapper(t).Store()
	now := day.Add(10 * time.Hour)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	eng, err := engine.New(store, engine.WithClock(clock), engine.WithBaseDelay(0))
	require.NoError(t, err)

	_, err = eng.AddBook(ctx, fixtures.Book("111", "Dune", 1))
	require.NoError(t, err)
	_, err = eng.RegisterMember(ctx, fixtures.Member("M001", lending.MembershipStandard, day))
	require.NoError(t, err)

	// act
	record, borrowErr := eng.Borrow(ctx, "M001", "111")
	_, secondBorrowErr := eng.Borrow(ctx, "M001", "111")

	clockMu.Lock()
	now = now.AddDate(0, 0, 24) // due after 14 days, 10 days late
	clockMu.Unlock()

	returned, returnErr := eng.Return(ctx, record.RecordID)
	_, doubleReturnErr := eng.Return(ctx, record.RecordID)

	// assert
	require.NoError(t, borrowErr)
	assert.ErrorIs(t, secondBorrowErr, lending.ErrBookUnavailable)
	require.NoError(t, returnErr)
	assert.Equal(t, "5.00", returned.FineAmount.String())
	assert.ErrorIs(t, doubleReturnErr, lending.ErrAlreadyReturned)

	book, err := eng.FindBook(ctx, "111")
	require.NoError(t, err)
	member, err := eng.FindMember(ctx, "M001")
	require.NoError(t, err)
	stored, err := store.Stores().Ledger.GetRecord(ctx, record.RecordID)
	require.NoError(t, err)

	assert.Equal(t, 1, book.AvailableCopies)
	assert.Equal(t, 0, member.BorrowedCount)
	assert.Equal(t, returned, stored)
}

func Test_Engine_ConcurrentBorrowsOfTheLastCopyOnSQL(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := sqlenginetest.CreateWrapper(t).Store()
	eng, err := engine.New(store, engine.WithClock(func() time.Time { return day }), engine.WithBaseDelay(0))
	require.NoError(t, err)

	_, err = eng.AddBook(ctx, fixtures.Book("111", "Dune", 1))
	require.NoError(t, err)

	memberIDs := []string{"M001", "M002", "M003", "M004"}
	for _, id := range memberIDs {
		_, err := eng.RegisterMember(ctx, fixtures.Member(id, lending.MembershipStandard, day))
		require.NoError(t, err)
	}

	// act
	var wg sync.WaitGroup
	errs := make(chan error, len(memberIDs))
	for _, id := range memberIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, borrowErr := eng.Borrow(ctx, id, "111")
			errs <- borrowErr
		}(id)
	}
	wg.Wait()
	close(errs)

	// assert
	succeeded := 0
	for borrowErr := range errs {
		if borrowErr == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, borrowErr, lending.ErrBookUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	book, err := eng.FindBook(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableCopies)

	records, err := eng.AllBorrowRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func seedBooksAndMembers(t *testing.T, stores lending.Stores, isbnList, memberIDs []string) {
	t.Helper()

	ctx := context.Background()
	for _, isbn := range isbnList {
		require.NoError(t, stores.Catalog.CreateBook(ctx, fixtures.Book(isbn, "Title "+isbn, 1)))
	}

	for _, id := range memberIDs {
		require.NoError(t, stores.Members.CreateMember(ctx, fixtures.Member(id, lending.MembershipStandard, day)))
	}
}

func isbns(books []lending.Book) []string {
	out := make([]string, 0, len(books))
	for _, book := range books {
		out = append(out, book.ISBN)
	}

	return out
}

func recordIDs(records []lending.BorrowRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.RecordID)
	}

	return out
}

package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/sqlengine/internal/adapters"
)

var (
	bookColumns = []any{
		colISBN, colTitle, colAuthor, colCategory, colPublisher,
		colPublicationDate, colTotalCopies, colAvailableCopies, colActive,
	}

	memberColumns = []any{
		colID, colFirstName, colLastName, colEmail, colPhone, colMembershipType,
		colMembershipExpiry, colBorrowedCount, colActive, colRegistrationDate,
	}

	recordColumns = []any{
		colRecordID, colMemberID, colISBN, colBorrowDate, colDueDate,
		colReturnDate, colStatus, colFineAmountCents,
	}

	bookSearchColumns   = []string{colISBN, colTitle, colAuthor, colCategory, colPublisher}
	memberSearchColumns = []string{colID, colFirstName, colLastName, colEmail, colMembershipType}
)

// view implements the three store contracts. Inside a unit of work tx is set and every
// statement runs in it; outside, each statement is its own implicit transaction.
type view struct {
	store *Store
	tx    adapters.TxAdapter
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (v *view) build(ctx context.Context, builder sqlBuilder) (string, error) {
	sqlQuery, _, err := builder.ToSQL()
	if err != nil {
		v.store.logError(ctx, logMsgBuildFailed, logAttrError, err.Error())
		return "", errors.Join(lending.ErrPersistenceFailure, err)
	}

	return sqlQuery, nil
}

// query routes a read: the open transaction first, then the replica when the context allows
// eventual consistency, otherwise the primary.
func (v *view) query(ctx context.Context, builder sqlBuilder) (adapters.DBRows, error) {
	sqlQuery, err := v.build(ctx, builder)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var rows adapters.DBRows
	switch {
	case v.tx != nil:
		rows, err = v.tx.Query(ctx, sqlQuery)
	case lending.GetConsistencyLevel(ctx) == lending.EventualConsistency:
		rows, err = v.store.db.QueryReplica(ctx, sqlQuery)
	default:
		rows, err = v.store.db.Query(ctx, sqlQuery)
	}

	v.store.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if err != nil {
		return nil, v.store.failed(ctx, logMsgQueryFailed, sqlQuery, err)
	}

	return rows, nil
}

// exec runs a write and returns the number of affected rows. Driver errors are returned unmapped
// so callers can tell duplicates apart.
func (v *view) exec(ctx context.Context, builder sqlBuilder) (int64, string, error) {
	sqlQuery, err := v.build(ctx, builder)
	if err != nil {
		return 0, "", err
	}

	start := time.Now()

	var result adapters.DBResult
	if v.tx != nil {
		result, err = v.tx.Exec(ctx, sqlQuery)
	} else {
		result, err = v.store.db.Exec(ctx, sqlQuery)
	}

	v.store.logQueryWithDuration(ctx, sqlQuery, logActionExec, time.Since(start))

	if err != nil {
		return 0, sqlQuery, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, sqlQuery, err
	}

	return affected, sqlQuery, nil
}

func (v *view) insert(ctx context.Context, table string, row goqu.Record, what string) error {
	_, sqlQuery, err := v.exec(ctx, v.store.dialect.Insert(table).Rows(row))
	if err != nil {
		if sqlQuery == "" {
			return err
		}

		return describeDuplicate(v.store.failed(ctx, logMsgExecFailed, sqlQuery, err), what)
	}

	return nil
}

// update applies set to the row matching where. notFound is returned when no row matched.
func (v *view) update(ctx context.Context, table string, set goqu.Record, where exp.Expression, notFound error, what string) error {
	affected, sqlQuery, err := v.exec(ctx, v.store.dialect.Update(table).Set(set).Where(where))
	if err != nil {
		if sqlQuery == "" {
			return err
		}

		return describeDuplicate(v.store.failed(ctx, logMsgExecFailed, sqlQuery, err), what)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}

func selectAll[T any](ctx context.Context, v *view, ds *goqu.SelectDataset, scan func(adapters.DBRows) (T, error)) ([]T, error) {
	rows, err := v.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer v.store.closeRows(ctx, rows)

	items := make([]T, 0)
	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			v.store.logError(ctx, logMsgScanFailed, logAttrError, scanErr.Error())
			return nil, errors.Join(lending.ErrPersistenceFailure, scanErr)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, v.store.failed(ctx, logMsgQueryFailed, "", err)
	}

	return items, nil
}

func selectOne[T any](ctx context.Context, v *view, ds *goqu.SelectDataset, scan func(adapters.DBRows) (T, error), notFound error) (T, error) {
	items, err := selectAll(ctx, v, ds.Limit(1), scan)
	if err != nil {
		var empty T
		return empty, err
	}

	if len(items) == 0 {
		var empty T
		return empty, notFound
	}

	return items[0], nil
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchCondition matches active rows where any of columns contains term, ignoring case.
// LOWER on both sides keeps PostgreSQL and SQLite in line with lending.BookMatches.
func searchCondition(term string, columns []string) exp.Expression {
	active := goqu.C(colActive).IsTrue()

	needle := strings.TrimSpace(term)
	if needle == "" {
		return active
	}

	pattern := "%" + likeEscaper.Replace(strings.ToLower(needle)) + "%"
	matches := make([]exp.Expression, 0, len(columns))
	for _, column := range columns {
		matches = append(matches, goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.C(column), pattern))
	}

	return goqu.And(active, goqu.Or(matches...))
}

// ---- books ----

func scanBook(rows adapters.DBRows) (lending.Book, error) {
	var book lending.Book

	err := rows.Scan(
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.Category,
		&book.Publisher,
		dateColumn{dest: &book.PublicationDate, nullable: true},
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.Active,
	)

	return book, err
}

func bookRow(book lending.Book) goqu.Record {
	return goqu.Record{
		colTitle:           book.Title,
		colAuthor:          book.Author,
		colCategory:        book.Category,
		colPublisher:       book.Publisher,
		colPublicationDate: nullableDateValue(book.PublicationDate),
		colTotalCopies:     book.TotalCopies,
		colAvailableCopies: book.AvailableCopies,
		colActive:          book.Active,
	}
}

func (v *view) books() *goqu.SelectDataset {
	return v.store.dialect.From(tableBooks).Select(bookColumns...).
		Order(goqu.C(colTitle).Asc(), goqu.C(colISBN).Asc())
}

func bookNotFound(isbn string) error {
	return fmt.Errorf("%w: isbn %s", lending.ErrBookNotFound, isbn)
}

// CreateBook implements lending.CatalogStore.
func (v *view) CreateBook(ctx context.Context, book lending.Book) error {
	row := bookRow(book)
	row[colISBN] = book.ISBN

	return v.insert(ctx, tableBooks, row, "isbn "+book.ISBN)
}

// GetBook implements lending.CatalogStore.
func (v *view) GetBook(ctx context.Context, isbn string) (lending.Book, error) {
	return selectOne(ctx, v, v.books().Where(goqu.C(colISBN).Eq(isbn)), scanBook, bookNotFound(isbn))
}

// GetBookForUpdate implements lending.CatalogStore. SQLite has no row locks; its write
// transactions are exclusive instead.
func (v *view) GetBookForUpdate(ctx context.Context, isbn string) (lending.Book, error) {
	ds := v.books().Where(goqu.C(colISBN).Eq(isbn)).ForUpdate(exp.Wait)
	return selectOne(ctx, v, ds, scanBook, bookNotFound(isbn))
}

// SearchBooks implements lending.CatalogStore.
func (v *view) SearchBooks(ctx context.Context, term string) ([]lending.Book, error) {
	return selectAll(ctx, v, v.books().Where(searchCondition(term, bookSearchColumns)), scanBook)
}

// UpdateBook implements lending.CatalogStore.
func (v *view) UpdateBook(ctx context.Context, book lending.Book) error {
	return v.update(ctx, tableBooks, bookRow(book), goqu.C(colISBN).Eq(book.ISBN),
		bookNotFound(book.ISBN), "isbn "+book.ISBN)
}

// SoftDeleteBook implements lending.CatalogStore.
func (v *view) SoftDeleteBook(ctx context.Context, isbn string) error {
	return v.update(ctx, tableBooks, goqu.Record{colActive: false}, goqu.C(colISBN).Eq(isbn),
		bookNotFound(isbn), "isbn "+isbn)
}

// ListAvailableBooks implements lending.CatalogStore.
func (v *view) ListAvailableBooks(ctx context.Context) ([]lending.Book, error) {
	ds := v.books().Where(goqu.C(colActive).IsTrue(), goqu.C(colAvailableCopies).Gt(0))
	return selectAll(ctx, v, ds, scanBook)
}

// ListBooks implements lending.CatalogStore.
func (v *view) ListBooks(ctx context.Context) ([]lending.Book, error) {
	return selectAll(ctx, v, v.books().Where(goqu.C(colActive).IsTrue()), scanBook)
}

// ---- members ----

func scanMember(rows adapters.DBRows) (lending.Member, error) {
	var (
		member         lending.Member
		membershipType string
	)

	err := rows.Scan(
		&member.ID,
		&member.FirstName,
		&member.LastName,
		&member.Email,
		&member.Phone,
		&membershipType,
		dateColumn{dest: &member.MembershipExpiry},
		&member.BorrowedCount,
		&member.Active,
		dateColumn{dest: &member.RegistrationDate},
	)
	member.MembershipType = lending.MembershipType(membershipType)

	return member, err
}

func memberRow(member lending.Member) goqu.Record {
	return goqu.Record{
		colFirstName:        member.FirstName,
		colLastName:         member.LastName,
		colEmail:            member.Email,
		colPhone:            member.Phone,
		colMembershipType:   string(member.MembershipType),
		colMembershipExpiry: dateValue(member.MembershipExpiry),
		colBorrowedCount:    member.BorrowedCount,
		colActive:           member.Active,
		colRegistrationDate: dateValue(member.RegistrationDate),
	}
}

func (v *view) members() *goqu.SelectDataset {
	return v.store.dialect.From(tableMembers).Select(memberColumns...).
		Order(goqu.C(colLastName).Asc(), goqu.C(colFirstName).Asc(), goqu.C(colID).Asc())
}

func memberNotFound(id string) error {
	return fmt.Errorf("%w: id %s", lending.ErrMemberNotFound, id)
}

// CreateMember implements lending.MembershipStore.
func (v *view) CreateMember(ctx context.Context, member lending.Member) error {
	row := memberRow(member)
	row[colID] = member.ID

	return v.insert(ctx, tableMembers, row, fmt.Sprintf("member id %s or email %s", member.ID, member.Email))
}

// GetMember implements lending.MembershipStore.
func (v *view) GetMember(ctx context.Context, id string) (lending.Member, error) {
	return selectOne(ctx, v, v.members().Where(goqu.C(colID).Eq(id)), scanMember, memberNotFound(id))
}

// GetMemberForUpdate implements lending.MembershipStore.
func (v *view) GetMemberForUpdate(ctx context.Context, id string) (lending.Member, error) {
	ds := v.members().Where(goqu.C(colID).Eq(id)).ForUpdate(exp.Wait)
	return selectOne(ctx, v, ds, scanMember, memberNotFound(id))
}

// SearchMembers implements lending.MembershipStore.
func (v *view) SearchMembers(ctx context.Context, term string) ([]lending.Member, error) {
	return selectAll(ctx, v, v.members().Where(searchCondition(term, memberSearchColumns)), scanMember)
}

// UpdateMember implements lending.MembershipStore.
func (v *view) UpdateMember(ctx context.Context, member lending.Member) error {
	return v.update(ctx, tableMembers, memberRow(member), goqu.C(colID).Eq(member.ID),
		memberNotFound(member.ID), "email "+member.Email)
}

// SoftDeleteMember implements lending.MembershipStore.
func (v *view) SoftDeleteMember(ctx context.Context, id string) error {
	return v.update(ctx, tableMembers, goqu.Record{colActive: false}, goqu.C(colID).Eq(id),
		memberNotFound(id), "member id "+id)
}

// ListMembers implements lending.MembershipStore.
func (v *view) ListMembers(ctx context.Context) ([]lending.Member, error) {
	return selectAll(ctx, v, v.members().Where(goqu.C(colActive).IsTrue()), scanMember)
}

// ---- borrow records ----

func scanRecord(rows adapters.DBRows) (lending.BorrowRecord, error) {
	var (
		record     lending.BorrowRecord
		status     string
		fineAmount int64
	)

	err := rows.Scan(
		&record.RecordID,
		&record.MemberID,
		&record.ISBN,
		dateColumn{dest: &record.BorrowDate},
		dateColumn{dest: &record.DueDate},
		nullDateColumn{dest: &record.ReturnDate},
		&status,
		&fineAmount,
	)
	record.Status = lending.Status(status)
	record.FineAmount = lending.Money(fineAmount)

	return record, err
}

func recordRow(record lending.BorrowRecord) goqu.Record {
	var returnDate any
	if record.ReturnDate != nil {
		returnDate = dateValue(*record.ReturnDate)
	}

	return goqu.Record{
		colMemberID:        record.MemberID,
		colISBN:            record.ISBN,
		colBorrowDate:      dateValue(record.BorrowDate),
		colDueDate:         dateValue(record.DueDate),
		colReturnDate:      returnDate,
		colStatus:          string(record.Status),
		colFineAmountCents: record.FineAmount.Cents(),
	}
}

func (v *view) records() *goqu.SelectDataset {
	return v.store.dialect.From(tableRecords).Select(recordColumns...)
}

func newestBorrowFirst(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.Order(goqu.C(colBorrowDate).Desc(), goqu.C(colRecordID).Asc())
}

func earliestDueFirst(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.Order(goqu.C(colDueDate).Asc(), goqu.C(colRecordID).Asc())
}

func recordNotFound(recordID string) error {
	return fmt.Errorf("%w: id %s", lending.ErrRecordNotFound, recordID)
}

// CreateRecord implements lending.LoanLedger.
func (v *view) CreateRecord(ctx context.Context, record lending.BorrowRecord) error {
	row := recordRow(record)
	row[colRecordID] = record.RecordID

	return v.insert(ctx, tableRecords, row, "record id "+record.RecordID)
}

// GetRecord implements lending.LoanLedger.
func (v *view) GetRecord(ctx context.Context, recordID string) (lending.BorrowRecord, error) {
	ds := v.records().Where(goqu.C(colRecordID).Eq(recordID))
	return selectOne(ctx, v, ds, scanRecord, recordNotFound(recordID))
}

// GetRecordForUpdate implements lending.LoanLedger.
func (v *view) GetRecordForUpdate(ctx context.Context, recordID string) (lending.BorrowRecord, error) {
	ds := v.records().Where(goqu.C(colRecordID).Eq(recordID)).ForUpdate(exp.Wait)
	return selectOne(ctx, v, ds, scanRecord, recordNotFound(recordID))
}

// UpdateRecord implements lending.LoanLedger.
func (v *view) UpdateRecord(ctx context.Context, record lending.BorrowRecord) error {
	return v.update(ctx, tableRecords, recordRow(record), goqu.C(colRecordID).Eq(record.RecordID),
		recordNotFound(record.RecordID), "record id "+record.RecordID)
}

// ListByMember implements lending.LoanLedger.
func (v *view) ListByMember(ctx context.Context, memberID string) ([]lending.BorrowRecord, error) {
	ds := newestBorrowFirst(v.records().Where(goqu.C(colMemberID).Eq(memberID)))
	return selectAll(ctx, v, ds, scanRecord)
}

// ListActiveByMember implements lending.LoanLedger.
func (v *view) ListActiveByMember(ctx context.Context, memberID string) ([]lending.BorrowRecord, error) {
	ds := earliestDueFirst(v.records().Where(
		goqu.C(colMemberID).Eq(memberID),
		goqu.C(colStatus).Eq(string(lending.StatusBorrowed)),
	))

	return selectAll(ctx, v, ds, scanRecord)
}

// ListOverdue implements lending.LoanLedger.
func (v *view) ListOverdue(ctx context.Context, asOf time.Time) ([]lending.BorrowRecord, error) {
	ds := earliestDueFirst(v.records().Where(
		goqu.C(colStatus).Eq(string(lending.StatusBorrowed)),
		goqu.C(colDueDate).Lt(dateValue(asOf)),
	))

	return selectAll(ctx, v, ds, scanRecord)
}

// ListAll implements lending.LoanLedger.
func (v *view) ListAll(ctx context.Context) ([]lending.BorrowRecord, error) {
	return selectAll(ctx, v, newestBorrowFirst(v.records()), scanRecord)
}

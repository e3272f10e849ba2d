package memengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// view implements the three store contracts. Inside a unit of work staged is set and reads
// see the staged writes first; outside, every write runs as its own unit of work.
type view struct {
	store  *Store
	staged *overlay
}

func (v *view) write(ctx context.Context, op func(tx *view) error) error {
	if v.staged != nil {
		return op(v)
	}

	return v.store.runTx(ctx, op)
}

func (v *view) lookupBook(isbn string) (lending.Book, bool) {
	if v.staged != nil {
		if book, ok := v.staged.books[isbn]; ok {
			return book, true
		}
	}

	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	book, ok := v.store.state.books[isbn]

	return book, ok
}

func (v *view) lookupMember(id string) (lending.Member, bool) {
	if v.staged != nil {
		if member, ok := v.staged.members[id]; ok {
			return member, true
		}
	}

	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	member, ok := v.store.state.members[id]

	return member, ok
}

func (v *view) lookupRecord(recordID string) (lending.BorrowRecord, bool) {
	if v.staged != nil {
		if record, ok := v.staged.records[recordID]; ok {
			return cloneRecord(record), true
		}
	}

	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	record, ok := v.store.state.records[recordID]

	return cloneRecord(record), ok
}

// read runs fn under the read lock with the stored state and the staged writes of this view.
// fn must neither keep nor modify the maps it is handed.
func (v *view) read(fn func(base, staged state)) {
	var staged state
	if v.staged != nil {
		staged = v.staged.state
	}

	v.store.mu.RLock()
	defer v.store.mu.RUnlock()

	fn(v.store.state, staged)
}

// overlayEach visits every item of base not shadowed by staged, then every staged item.
func overlayEach[T any](base, staged map[string]T, fn func(T)) {
	for key, item := range base {
		if _, shadowed := staged[key]; shadowed {
			continue
		}
		fn(item)
	}

	for _, item := range staged {
		fn(item)
	}
}

// CreateBook implements lending.CatalogStore.
func (v *view) CreateBook(ctx context.Context, book lending.Book) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupBook(book.ISBN); exists {
			return fmt.Errorf("%w: isbn %s", lending.ErrDuplicateKey, book.ISBN)
		}

		tx.staged.books[book.ISBN] = book
		tx.staged.created[keyPrefixBook+book.ISBN] = struct{}{}

		return nil
	})
}

// GetBook implements lending.CatalogStore.
func (v *view) GetBook(_ context.Context, isbn string) (lending.Book, error) {
	book, ok := v.lookupBook(isbn)
	if !ok {
		return lending.Book{}, fmt.Errorf("%w: isbn %s", lending.ErrBookNotFound, isbn)
	}

	return book, nil
}

// GetBookForUpdate implements lending.CatalogStore. Isolation comes from the commit-time lock.
func (v *view) GetBookForUpdate(ctx context.Context, isbn string) (lending.Book, error) {
	return v.GetBook(ctx, isbn)
}

// SearchBooks implements lending.CatalogStore.
func (v *view) SearchBooks(_ context.Context, term string) ([]lending.Book, error) {
	return v.selectBooks(func(b lending.Book) bool { return b.Active && lending.BookMatches(b, term) }), nil
}

// UpdateBook implements lending.CatalogStore.
func (v *view) UpdateBook(ctx context.Context, book lending.Book) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupBook(book.ISBN); !exists {
			return fmt.Errorf("%w: isbn %s", lending.ErrBookNotFound, book.ISBN)
		}

		tx.staged.books[book.ISBN] = book

		return nil
	})
}

// SoftDeleteBook implements lending.CatalogStore.
func (v *view) SoftDeleteBook(ctx context.Context, isbn string) error {
	return v.write(ctx, func(tx *view) error {
		book, exists := tx.lookupBook(isbn)
		if !exists {
			return fmt.Errorf("%w: isbn %s", lending.ErrBookNotFound, isbn)
		}

		book.Active = false
		tx.staged.books[isbn] = book

		return nil
	})
}

// ListAvailableBooks implements lending.CatalogStore.
func (v *view) ListAvailableBooks(_ context.Context) ([]lending.Book, error) {
	return v.selectBooks(lending.Book.IsAvailable), nil
}

// ListBooks implements lending.CatalogStore.
func (v *view) ListBooks(_ context.Context) ([]lending.Book, error) {
	return v.selectBooks(func(b lending.Book) bool { return b.Active }), nil
}

func (v *view) selectBooks(keep func(lending.Book) bool) []lending.Book {
	books := make([]lending.Book, 0)
	v.read(func(base, staged state) {
		overlayEach(base.books, staged.books, func(book lending.Book) {
			if keep(book) {
				books = append(books, book)
			}
		})
	})

	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ISBN < books[j].ISBN
	})

	return books
}

// CreateMember implements lending.MembershipStore.
func (v *view) CreateMember(ctx context.Context, member lending.Member) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupMember(member.ID); exists {
			return fmt.Errorf("%w: member id %s", lending.ErrDuplicateKey, member.ID)
		}

		if err := tx.checkEmailFree(member); err != nil {
			return err
		}

		tx.staged.members[member.ID] = member
		tx.staged.created[keyPrefixMember+member.ID] = struct{}{}

		return nil
	})
}

// GetMember implements lending.MembershipStore.
func (v *view) GetMember(_ context.Context, id string) (lending.Member, error) {
	member, ok := v.lookupMember(id)
	if !ok {
		return lending.Member{}, fmt.Errorf("%w: id %s", lending.ErrMemberNotFound, id)
	}

	return member, nil
}

// GetMemberForUpdate implements lending.MembershipStore.
func (v *view) GetMemberForUpdate(ctx context.Context, id string) (lending.Member, error) {
	return v.GetMember(ctx, id)
}

// SearchMembers implements lending.MembershipStore.
func (v *view) SearchMembers(_ context.Context, term string) ([]lending.Member, error) {
	return v.selectMembers(func(m lending.Member) bool { return m.Active && lending.MemberMatches(m, term) }), nil
}

// UpdateMember implements lending.MembershipStore.
func (v *view) UpdateMember(ctx context.Context, member lending.Member) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupMember(member.ID); !exists {
			return fmt.Errorf("%w: id %s", lending.ErrMemberNotFound, member.ID)
		}

		if err := tx.checkEmailFree(member); err != nil {
			return err
		}

		tx.staged.members[member.ID] = member

		return nil
	})
}

// SoftDeleteMember implements lending.MembershipStore.
func (v *view) SoftDeleteMember(ctx context.Context, id string) error {
	return v.write(ctx, func(tx *view) error {
		member, exists := tx.lookupMember(id)
		if !exists {
			return fmt.Errorf("%w: id %s", lending.ErrMemberNotFound, id)
		}

		member.Active = false
		tx.staged.members[id] = member

		return nil
	})
}

// ListMembers implements lending.MembershipStore.
func (v *view) ListMembers(_ context.Context) ([]lending.Member, error) {
	return v.selectMembers(func(m lending.Member) bool { return m.Active }), nil
}

func (v *view) checkEmailFree(member lending.Member) error {
	taken := false
	v.read(func(base, staged state) {
		overlayEach(base.members, staged.members, func(other lending.Member) {
			if other.ID != member.ID && strings.EqualFold(other.Email, member.Email) {
				taken = true
			}
		})
	})

	if taken {
		return fmt.Errorf("%w: email %s", lending.ErrDuplicateKey, member.Email)
	}

	return nil
}

func (v *view) selectMembers(keep func(lending.Member) bool) []lending.Member {
	members := make([]lending.Member, 0)
	v.read(func(base, staged state) {
		overlayEach(base.members, staged.members, func(member lending.Member) {
			if keep(member) {
				members = append(members, member)
			}
		})
	})

	sort.Slice(members, func(i, j int) bool {
		if members[i].LastName != members[j].LastName {
			return members[i].LastName < members[j].LastName
		}
		if members[i].FirstName != members[j].FirstName {
			return members[i].FirstName < members[j].FirstName
		}
		return members[i].ID < members[j].ID
	})

	return members
}

// CreateRecord implements lending.LoanLedger.
func (v *view) CreateRecord(ctx context.Context, record lending.BorrowRecord) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupRecord(record.RecordID); exists {
			return fmt.Errorf("%w: record id %s", lending.ErrDuplicateKey, record.RecordID)
		}

		tx.staged.records[record.RecordID] = cloneRecord(record)
		tx.staged.created[keyPrefixRecord+record.RecordID] = struct{}{}

		return nil
	})
}

// GetRecord implements lending.LoanLedger.
func (v *view) GetRecord(_ context.Context, recordID string) (lending.BorrowRecord, error) {
	record, ok := v.lookupRecord(recordID)
	if !ok {
		return lending.BorrowRecord{}, fmt.Errorf("%w: id %s", lending.ErrRecordNotFound, recordID)
	}

	return record, nil
}

// GetRecordForUpdate implements lending.LoanLedger.
func (v *view) GetRecordForUpdate(ctx context.Context, recordID string) (lending.BorrowRecord, error) {
	return v.GetRecord(ctx, recordID)
}

// UpdateRecord implements lending.LoanLedger.
func (v *view) UpdateRecord(ctx context.Context, record lending.BorrowRecord) error {
	return v.write(ctx, func(tx *view) error {
		if _, exists := tx.lookupRecord(record.RecordID); !exists {
			return fmt.Errorf("%w: id %s", lending.ErrRecordNotFound, record.RecordID)
		}

		tx.staged.records[record.RecordID] = cloneRecord(record)

		return nil
	})
}

// ListByMember implements lending.LoanLedger.
func (v *view) ListByMember(_ context.Context, memberID string) ([]lending.BorrowRecord, error) {
	records := v.selectRecords(func(r lending.BorrowRecord) bool { return r.MemberID == memberID })
	sortNewestBorrowFirst(records)

	return records, nil
}

// ListActiveByMember implements lending.LoanLedger.
func (v *view) ListActiveByMember(_ context.Context, memberID string) ([]lending.BorrowRecord, error) {
	records := v.selectRecords(func(r lending.BorrowRecord) bool { return r.MemberID == memberID && r.IsActive() })
	sortEarliestDueFirst(records)

	return records, nil
}

// ListOverdue implements lending.LoanLedger.
func (v *view) ListOverdue(_ context.Context, asOf time.Time) ([]lending.BorrowRecord, error) {
	cutoff := lending.EpochDay(asOf)
	records := v.selectRecords(func(r lending.BorrowRecord) bool {
		return r.IsActive() && lending.EpochDay(r.DueDate) < cutoff
	})
	sortEarliestDueFirst(records)

	return records, nil
}

// ListAll implements lending.LoanLedger.
func (v *view) ListAll(_ context.Context) ([]lending.BorrowRecord, error) {
	records := v.selectRecords(func(lending.BorrowRecord) bool { return true })
	sortNewestBorrowFirst(records)

	return records, nil
}

func (v *view) selectRecords(keep func(lending.BorrowRecord) bool) []lending.BorrowRecord {
	records := make([]lending.BorrowRecord, 0)
	v.read(func(base, staged state) {
		overlayEach(base.records, staged.records, func(record lending.BorrowRecord) {
			if keep(record) {
				records = append(records, cloneRecord(record))
			}
		})
	})

	return records
}

func sortNewestBorrowFirst(records []lending.BorrowRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].BorrowDate.Equal(records[j].BorrowDate) {
			return records[i].BorrowDate.After(records[j].BorrowDate)
		}
		return records[i].RecordID < records[j].RecordID
	})
}

func sortEarliestDueFirst(records []lending.BorrowRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].DueDate.Equal(records[j].DueDate) {
			return records[i].DueDate.Before(records[j].DueDate)
		}
		return records[i].RecordID < records[j].RecordID
	})
}

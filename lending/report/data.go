package report

import (
	"context"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Source is the read side of the lending engine the reports are built from.
type Source interface {
	ListBooks(ctx context.Context) ([]lending.Book, error)
	ListMembers(ctx context.Context) ([]lending.Member, error)
	AllBorrowRecords(ctx context.Context) ([]lending.BorrowRecord, error)
	Policy() lending.Policy
	Today() time.Time
}

// Data is the input of every report.
type Data struct {
	Books   []lending.Book
	Members []lending.Member
	Records []lending.BorrowRecord
	Policy  lending.Policy
	Today   time.Time
}

// Load reads everything the reports need. Reads may be served by a replica.
func Load(ctx context.Context, src Source) (Data, error) {
	ctx = lending.WithEventualConsistency(ctx)

	books, err := src.ListBooks(ctx)
	if err != nil {
		return Data{}, err
	}

	members, err := src.ListMembers(ctx)
	if err != nil {
		return Data{}, err
	}

	records, err := src.AllBorrowRecords(ctx)
	if err != nil {
		return Data{}, err
	}

	return Data{
		Books:   books,
		Members: members,
		Records: records,
		Policy:  src.Policy(),
		Today:   lending.Today(src.Today()),
	}, nil
}

func (d Data) booksByISBN() map[string]lending.Book {
	index := make(map[string]lending.Book, len(d.Books))
	for _, book := range d.Books {
		index[book.ISBN] = book
	}

	return index
}

func (d Data) membersByID() map[string]lending.Member {
	index := make(map[string]lending.Member, len(d.Members))
	for _, member := range d.Members {
		index[member.ID] = member
	}

	return index
}

func (d Data) isOverdue(record lending.BorrowRecord) bool {
	return lending.IsOverdue(record, d.Today)
}

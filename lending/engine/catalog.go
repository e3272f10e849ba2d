package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/librarydesk/lending-engine/lending"
)

// AddBook adds a title to the catalog. Every copy starts on the shelf and the book starts active.
func (e *Engine) AddBook(ctx context.Context, book lending.Book) (lending.Book, error) {
	book = normalizeBook(book)
	book.AvailableCopies = book.TotalCopies
	book.Active = true

	ctx, obs := e.begin(ctx, operationAddBook, spanAttrISBN, book.ISBN)

	err := lending.Validate(book)
	if err == nil {
		err = e.mutate(ctx, operationAddBook, []string{bookKey(book.ISBN)}, func(ctx context.Context, tx lending.Stores) error {
			return tx.Catalog.CreateBook(ctx, book)
		})
	}

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Book{}, err
	}

	return book, nil
}

// UpdateBookDetails replaces the descriptive fields of a book. Copy counts and the active flag are kept.
func (e *Engine) UpdateBookDetails(ctx context.Context, isbn string, details lending.BookDetails) (lending.Book, error) {
	details = normalizeDetails(details)

	ctx, obs := e.begin(ctx, operationUpdateBook, spanAttrISBN, isbn)

	var updated lending.Book
	err := lending.Validate(details)
	if err == nil {
		err = e.mutate(ctx, operationUpdateBook, []string{bookKey(isbn)}, func(ctx context.Context, tx lending.Stores) error {
			book, err := tx.Catalog.GetBookForUpdate(ctx, isbn)
			if err != nil {
				return err
			}

			updated = book.WithDetails(details)

			return tx.Catalog.UpdateBook(ctx, updated)
		})
	}

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Book{}, err
	}

	return updated, nil
}

// AdjustCopies adds delta copies to a book (removes them when negative). Total and available
// copies change together, so copies on loan cannot be removed: ErrBookUnavailable.
func (e *Engine) AdjustCopies(ctx context.Context, isbn string, delta int) (lending.Book, error) {
	ctx, obs := e.begin(ctx, operationAdjustCopies, spanAttrISBN, isbn)

	var adjusted lending.Book
	err := e.mutate(ctx, operationAdjustCopies, []string{bookKey(isbn)}, func(ctx context.Context, tx lending.Stores) error {
		book, err := tx.Catalog.GetBookForUpdate(ctx, isbn)
		if err != nil {
			return err
		}

		if book.AvailableCopies+delta < 0 {
			return fmt.Errorf("%w: isbn %s: cannot remove %d copies, only %d of %d are on the shelf",
				lending.ErrBookUnavailable, isbn, -delta, book.AvailableCopies, book.TotalCopies)
		}

		book.TotalCopies += delta
		book.AvailableCopies += delta
		adjusted = book

		return tx.Catalog.UpdateBook(ctx, book)
	})

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Book{}, err
	}

	return adjusted, nil
}

// RetireBook removes a title from the catalog. Its records stay; open loans can still be returned.
func (e *Engine) RetireBook(ctx context.Context, isbn string) error {
	ctx, obs := e.begin(ctx, operationRetireBook, spanAttrISBN, isbn)

	err := e.mutate(ctx, operationRetireBook, []string{bookKey(isbn)}, func(ctx context.Context, tx lending.Stores) error {
		return tx.Catalog.SoftDeleteBook(ctx, isbn)
	})

	e.end(ctx, obs, err)

	return err
}

// FindBook returns the book with the given isbn, retired or not.
func (e *Engine) FindBook(ctx context.Context, isbn string) (lending.Book, error) {
	return e.backend.Stores().Catalog.GetBook(ctx, strings.TrimSpace(isbn))
}

// SearchBooks returns the active books matching term, ordered by title.
func (e *Engine) SearchBooks(ctx context.Context, term string) ([]lending.Book, error) {
	return e.backend.Stores().Catalog.SearchBooks(ctx, term)
}

// ListBooks returns all active books, ordered by title.
func (e *Engine) ListBooks(ctx context.Context) ([]lending.Book, error) {
	return e.backend.Stores().Catalog.ListBooks(ctx)
}

// ListAvailableBooks returns the active books with a copy on the shelf, ordered by title.
func (e *Engine) ListAvailableBooks(ctx context.Context) ([]lending.Book, error) {
	return e.backend.Stores().Catalog.ListAvailableBooks(ctx)
}

// UniqueCategories returns the sorted, distinct non-empty categories of the active books.
func (e *Engine) UniqueCategories(ctx context.Context) ([]string, error) {
	books, err := e.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	categories := make([]string, 0)
	for _, book := range books {
		if book.Category == "" {
			continue
		}

		if _, ok := seen[book.Category]; !ok {
			seen[book.Category] = struct{}{}
			categories = append(categories, book.Category)
		}
	}

	sort.Strings(categories)

	return categories, nil
}

// mutate runs fn as a retried unit of work while holding the given keys.
func (e *Engine) mutate(ctx context.Context, operation string, keys []string, fn lending.TxFunc) error {
	unlock, err := e.locks.lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	return e.withRetry(ctx, operation, func(ctx context.Context) error {
		return e.backend.InTransaction(ctx, fn)
	})
}

func normalizeBook(book lending.Book) lending.Book {
	book.ISBN = strings.TrimSpace(book.ISBN)

	return book.WithDetails(normalizeDetails(book.Details()))
}

func normalizeDetails(d lending.BookDetails) lending.BookDetails {
	d.Title = strings.TrimSpace(d.Title)
	d.Author = strings.TrimSpace(d.Author)
	d.Category = strings.TrimSpace(d.Category)
	d.Publisher = strings.TrimSpace(d.Publisher)
	if !d.PublicationDate.IsZero() {
		d.PublicationDate = lending.Today(d.PublicationDate)
	}

	return d
}

package lending

import "time"

// Book is one catalog title. AvailableCopies counts the copies not currently lent.
type Book struct {
	ISBN            string    `json:"isbn" validate:"required,max=20"`
	Title           string    `json:"title" validate:"required,max=255"`
	Author          string    `json:"author" validate:"required,max=255"`
	Category        string    `json:"category" validate:"max=100"`
	Publisher       string    `json:"publisher" validate:"max=255"`
	PublicationDate time.Time `json:"publicationDate"`
	TotalCopies     int       `json:"totalCopies" validate:"gte=0"`
	AvailableCopies int       `json:"availableCopies" validate:"gte=0,ltefield=TotalCopies"`
	Active          bool      `json:"active"`
}

// BookDetails holds the descriptive fields of a Book that may be edited after creation.
type BookDetails struct {
	Title           string    `json:"title" validate:"required,max=255"`
	Author          string    `json:"author" validate:"required,max=255"`
	Category        string    `json:"category" validate:"max=100"`
	Publisher       string    `json:"publisher" validate:"max=255"`
	PublicationDate time.Time `json:"publicationDate"`
}

// IsAvailable reports whether at least one copy of an active book can be lent.
func (b Book) IsAvailable() bool {
	return b.Active && b.AvailableCopies > 0
}

// LentCopies returns the number of copies currently out on loan.
func (b Book) LentCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// Details returns the editable fields of the book.
func (b Book) Details() BookDetails {
	return BookDetails{
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		Publisher:       b.Publisher,
		PublicationDate: b.PublicationDate,
	}
}

// WithDetails returns a copy of the book with its descriptive fields replaced.
// Key, copy counts and the active flag are left untouched.
func (b Book) WithDetails(d BookDetails) Book {
	b.Title = d.Title
	b.Author = d.Author
	b.Category = d.Category
	b.Publisher = d.Publisher
	b.PublicationDate = d.PublicationDate

	return b
}

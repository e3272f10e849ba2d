// Package fixtures builds valid lending entities for tests.
package fixtures

import (
	"strings"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// PublicationDate is the publication date of every fixture book.
var PublicationDate = time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)

// Book returns an active book with all copies on the shelf.
func Book(isbn, title string, copies int) lending.Book {
	return lending.Book{
		ISBN:            isbn,
		Title:           title,
		Author:          "Author of " + title,
		Category:        "Fiction",
		Publisher:       "Ace Books",
		PublicationDate: PublicationDate,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Active:          true,
	}
}

// Member returns an active member without loans whose membership is valid for a year after today.
func Member(id string, membershipType lending.MembershipType, today time.Time) lending.Member {
	return lending.Member{
		ID: id,
		Contact: lending.Contact{
			FirstName: "First" + id,
			LastName:  "Last" + id,
			Email:     strings.ToLower(id) + "@library.test",
			Phone:     "555-0100",
		},
		MembershipType:   membershipType,
		MembershipExpiry: lending.DefaultPolicy().MembershipExpiry(today),
		Active:           true,
		RegistrationDate: lending.Today(today),
	}
}

// BorrowedRecord returns an active loan starting on borrowDate with the policy's due date.
func BorrowedRecord(recordID, memberID, isbn string, borrowDate time.Time, policy lending.Policy) lending.BorrowRecord {
	return lending.BorrowRecord{
		RecordID:   recordID,
		MemberID:   memberID,
		ISBN:       isbn,
		BorrowDate: lending.Today(borrowDate),
		DueDate:    policy.DueDate(borrowDate),
		Status:     lending.StatusBorrowed,
	}
}

package report

import (
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Statistics is the library overview.
type Statistics struct {
	AsOf             time.Time     `json:"asOf"`
	TotalBooks       int           `json:"totalBooks"`
	AvailableTitles  int           `json:"availableTitles"`
	FullyLentTitles  int           `json:"fullyLentTitles"`
	UniqueAuthors    int           `json:"uniqueAuthors"`
	Categories       int           `json:"categories"`
	ActiveMembers    int           `json:"activeMembers"`
	TotalLoans       int           `json:"totalLoans"`
	ActiveLoans      int           `json:"activeLoans"`
	OverdueLoans     int           `json:"overdueLoans"`
	OutstandingFines lending.Money `json:"outstandingFines"`
}

// Stats builds the library statistics. Books and members count active ones only;
// loans count every record ever made.
func Stats(data Data) Statistics {
	stats := Statistics{
		AsOf:          data.Today,
		TotalBooks:    len(data.Books),
		ActiveMembers: len(data.Members),
		TotalLoans:    len(data.Records),
	}

	authors := make(map[string]struct{})
	categories := make(map[string]struct{})

	for _, book := range data.Books {
		switch {
		case book.IsAvailable():
			stats.AvailableTitles++
		case book.TotalCopies > 0:
			stats.FullyLentTitles++
		}

		authors[book.Author] = struct{}{}
		if book.Category != "" {
			categories[book.Category] = struct{}{}
		}
	}

	stats.UniqueAuthors = len(authors)
	stats.Categories = len(categories)

	for _, record := range data.Records {
		if !record.IsActive() {
			continue
		}

		stats.ActiveLoans++
		if data.isOverdue(record) {
			stats.OverdueLoans++
		}

		stats.OutstandingFines += data.Policy.Fine(record, data.Today)
	}

	return stats
}

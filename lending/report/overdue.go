package report

import (
	"sort"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// OverdueLine is one overdue loan.
type OverdueLine struct {
	RecordID    string        `json:"recordId"`
	MemberID    string        `json:"memberId"`
	MemberName  string        `json:"memberName"`
	ISBN        string        `json:"isbn"`
	Title       string        `json:"title"`
	DueDate     time.Time     `json:"dueDate"`
	DaysOverdue int64         `json:"daysOverdue"`
	Fine        lending.Money `json:"fine"`
}

// OverdueReport lists the overdue loans, earliest due date first.
type OverdueReport struct {
	AsOf             time.Time     `json:"asOf"`
	Lines            []OverdueLine `json:"lines"`
	TotalOutstanding lending.Money `json:"totalOutstanding"`
}

// Overdue builds the overdue report. Fines are what the loans would cost if returned today.
// Titles and names of retired books or deactivated members are shown as "Unknown".
func Overdue(data Data) OverdueReport {
	books := data.booksByISBN()
	members := data.membersByID()

	report := OverdueReport{AsOf: data.Today, Lines: make([]OverdueLine, 0)}

	for _, record := range data.Records {
		if !data.isOverdue(record) {
			continue
		}

		line := OverdueLine{
			RecordID:    record.RecordID,
			MemberID:    record.MemberID,
			MemberName:  unknown,
			ISBN:        record.ISBN,
			Title:       unknown,
			DueDate:     record.DueDate,
			DaysOverdue: lending.DaysOverdue(record, data.Today),
			Fine:        data.Policy.Fine(record, data.Today),
		}

		if book, ok := books[record.ISBN]; ok {
			line.Title = book.Title
		}

		if member, ok := members[record.MemberID]; ok {
			line.MemberName = member.FullName()
		}

		report.Lines = append(report.Lines, line)
		report.TotalOutstanding += line.Fine
	}

	sort.Slice(report.Lines, func(i, j int) bool {
		if !report.Lines[i].DueDate.Equal(report.Lines[j].DueDate) {
			return report.Lines[i].DueDate.Before(report.Lines[j].DueDate)
		}
		return report.Lines[i].RecordID < report.Lines[j].RecordID
	})

	return report
}

const unknown = "Unknown"

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/librarydesk/lending-engine/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type printer struct {
	out  io.Writer
	json bool
}

// print writes v as JSON or hands a table writer to text.
func (p printer) print(v any, text func(w io.Writer)) error {
	if p.json {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}

		_, err = p.out.Write(append(data, '\n'))

		return err
	}

	table := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	text(table)

	return table.Flush()
}

// message prints a confirmation. With --json it becomes {"message": "..."}.
func (p printer) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	return p.print(map[string]string{"message": msg}, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, msg)
	})
}

func (p printer) book(book lending.Book) error {
	return p.print(book, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "ISBN:\t%s\n", book.ISBN)
		_, _ = fmt.Fprintf(w, "Title:\t%s\n", book.Title)
		_, _ = fmt.Fprintf(w, "Author:\t%s\n", book.Author)
		_, _ = fmt.Fprintf(w, "Category:\t%s\n", book.Category)
		_, _ = fmt.Fprintf(w, "Publisher:\t%s\n", book.Publisher)
		_, _ = fmt.Fprintf(w, "Published:\t%s\n", optionalDate(book.PublicationDate))
		_, _ = fmt.Fprintf(w, "Copies:\t%d of %d available\n", book.AvailableCopies, book.TotalCopies)
		_, _ = fmt.Fprintf(w, "Active:\t%t\n", book.Active)
	})
}

func (p printer) books(books []lending.Book) error {
	return p.print(books, func(w io.Writer) {
		if len(books) == 0 {
			_, _ = fmt.Fprintln(w, "No books found.")
			return
		}

		_, _ = fmt.Fprintln(w, "ISBN\tTITLE\tAUTHOR\tCATEGORY\tAVAILABLE")
		for _, book := range books {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n",
				book.ISBN, book.Title, book.Author, book.Category, book.AvailableCopies, book.TotalCopies)
		}
	})
}

func (p printer) member(member lending.Member) error {
	return p.print(member, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "ID:\t%s\n", member.ID)
		_, _ = fmt.Fprintf(w, "Name:\t%s\n", member.FullName())
		_, _ = fmt.Fprintf(w, "Email:\t%s\n", member.Email)
		_, _ = fmt.Fprintf(w, "Phone:\t%s\n", member.Phone)
		_, _ = fmt.Fprintf(w, "Type:\t%s\n", member.MembershipType)
		_, _ = fmt.Fprintf(w, "Expires:\t%s\n", lending.FormatDate(member.MembershipExpiry))
		_, _ = fmt.Fprintf(w, "Registered:\t%s\n", lending.FormatDate(member.RegistrationDate))
		_, _ = fmt.Fprintf(w, "Loans:\t%d\n", member.BorrowedCount)
		_, _ = fmt.Fprintf(w, "Active:\t%t\n", member.Active)
	})
}

func (p printer) members(members []lending.Member) error {
	return p.print(members, func(w io.Writer) {
		if len(members) == 0 {
			_, _ = fmt.Fprintln(w, "No members found.")
			return
		}

		_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tTYPE\tEXPIRES\tLOANS")
		for _, member := range members {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				member.ID, member.FullName(), member.Email, member.MembershipType,
				lending.FormatDate(member.MembershipExpiry), member.BorrowedCount)
		}
	})
}

func (p printer) record(record lending.BorrowRecord) error {
	return p.print(record, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Record:\t%s\n", record.RecordID)
		_, _ = fmt.Fprintf(w, "Member:\t%s\n", record.MemberID)
		_, _ = fmt.Fprintf(w, "ISBN:\t%s\n", record.ISBN)
		_, _ = fmt.Fprintf(w, "Borrowed:\t%s\n", lending.FormatDate(record.BorrowDate))
		_, _ = fmt.Fprintf(w, "Due:\t%s\n", lending.FormatDate(record.DueDate))
		_, _ = fmt.Fprintf(w, "Returned:\t%s\n", returnDate(record))
		_, _ = fmt.Fprintf(w, "Status:\t%s\n", record.Status)
		_, _ = fmt.Fprintf(w, "Fine:\t%s\n", record.FineAmount)
	})
}

func (p printer) records(records []lending.BorrowRecord) error {
	return p.print(records, func(w io.Writer) {
		if len(records) == 0 {
			_, _ = fmt.Fprintln(w, "No borrow records found.")
			return
		}

		_, _ = fmt.Fprintln(w, "RECORD\tMEMBER\tISBN\tBORROWED\tDUE\tRETURNED\tSTATUS\tFINE")
		for _, record := range records {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				record.RecordID, record.MemberID, record.ISBN,
				lending.FormatDate(record.BorrowDate), lending.FormatDate(record.DueDate),
				returnDate(record), record.Status, record.FineAmount)
		}
	})
}

func returnDate(record lending.BorrowRecord) string {
	if record.ReturnDate == nil {
		return "-"
	}

	return lending.FormatDate(*record.ReturnDate)
}

func optionalDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return lending.FormatDate(t)
}

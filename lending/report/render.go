package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"

	"github.com/librarydesk/lending-engine/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for formats other than FormatText and FormatJSON.
var ErrUnknownFormat = errors.New("unknown report format")

// Report is implemented by every report of this package.
type Report interface {
	Title() string
	WriteText(w io.Writer) error
}

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatText, "":
		return r.WriteText(w)
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}

		_, err = w.Write(append(data, '\n'))

		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Export renders r into the file at path, replacing it.
func Export(path string, r Report, format Format) error {
	var buf bytes.Buffer
	if err := Render(&buf, r, format); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeHeading(w io.Writer, title string, asOf string) {
	if asOf == "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", title)
		return
	}

	_, _ = fmt.Fprintf(w, "%s (as of %s)\n\n", title, asOf)
}

// Title implements Report.
func (r OverdueReport) Title() string { return "OVERDUE LOANS" }

// WriteText implements Report.
func (r OverdueReport) WriteText(w io.Writer) error {
	writeHeading(w, r.Title(), lending.FormatDate(r.AsOf))

	if len(r.Lines) == 0 {
		_, err := fmt.Fprintln(w, "No overdue loans.")
		return err
	}

	table := newTable(w)
	_, _ = fmt.Fprintln(table, "RECORD\tMEMBER\tNAME\tISBN\tTITLE\tDUE\tDAYS\tFINE")
	for _, line := range r.Lines {
		_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			line.RecordID, line.MemberID, line.MemberName, line.ISBN, line.Title,
			lending.FormatDate(line.DueDate), line.DaysOverdue, line.Fine)
	}

	if err := table.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal outstanding fines: %s\n", r.TotalOutstanding)

	return err
}

// Title implements Report.
func (r MemberActivity) Title() string { return "MEMBER ACTIVITY" }

// WriteText implements Report.
func (r MemberActivity) WriteText(w io.Writer) error {
	writeHeading(w, r.Title(), "")

	table := newTable(w)
	_, _ = fmt.Fprintf(table, "Total members:\t%d\n", r.TotalMembers)
	_, _ = fmt.Fprintf(table, "Members with loan history:\t%d\n", r.MembersWithHistory)
	_, _ = fmt.Fprintf(table, "Books currently borrowed:\t%d\n", r.CurrentlyBorrowed)
	for _, membershipType := range lending.MembershipTypes() {
		_, _ = fmt.Fprintf(table, "%s members:\t%d\n", membershipType, r.TypeDistribution[membershipType])
	}

	if err := table.Flush(); err != nil {
		return err
	}

	if len(r.TopBorrowers) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w, "\nTop borrowers:")
	table = newTable(w)
	_, _ = fmt.Fprintln(table, "RANK\tMEMBER\tNAME\tLOANS")
	for i, borrower := range r.TopBorrowers {
		_, _ = fmt.Fprintf(table, "%d\t%s\t%s\t%d\n", i+1, borrower.MemberID, borrower.Name, borrower.Loans)
	}

	return table.Flush()
}

// Title implements Report.
func (r BookPopularity) Title() string { return "BOOK POPULARITY" }

// WriteText implements Report.
func (r BookPopularity) WriteText(w io.Writer) error {
	writeHeading(w, r.Title(), "")

	if len(r.Lines) == 0 {
		_, err := fmt.Fprintln(w, "No borrowing activity.")
		return err
	}

	table := newTable(w)
	_, _ = fmt.Fprintln(table, "ISBN\tTITLE\tAUTHOR\tBORROWS")
	for _, line := range r.Lines {
		_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%d\n", line.ISBN, line.Title, line.Author, line.Borrows)
	}

	return table.Flush()
}

// Title implements Report.
func (r Statistics) Title() string { return "LIBRARY STATISTICS" }

// WriteText implements Report.
func (r Statistics) WriteText(w io.Writer) error {
	writeHeading(w, r.Title(), lending.FormatDate(r.AsOf))

	table := newTable(w)
	_, _ = fmt.Fprintf(table, "Books:\t%d\n", r.TotalBooks)
	_, _ = fmt.Fprintf(table, "Available titles:\t%d\n", r.AvailableTitles)
	_, _ = fmt.Fprintf(table, "Fully lent titles:\t%d\n", r.FullyLentTitles)
	_, _ = fmt.Fprintf(table, "Unique authors:\t%d\n", r.UniqueAuthors)
	_, _ = fmt.Fprintf(table, "Categories:\t%d\n", r.Categories)
	_, _ = fmt.Fprintf(table, "Active members:\t%d\n", r.ActiveMembers)
	_, _ = fmt.Fprintf(table, "Loans (all time):\t%d\n", r.TotalLoans)
	_, _ = fmt.Fprintf(table, "Active loans:\t%d\n", r.ActiveLoans)
	_, _ = fmt.Fprintf(table, "Overdue loans:\t%d\n", r.OverdueLoans)
	_, _ = fmt.Fprintf(table, "Outstanding fines:\t%s\n", r.OutstandingFines)

	return table.Flush()
}

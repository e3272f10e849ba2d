package sqlengine

import (
	"fmt"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// dateColumn scans a DATE (PostgreSQL) or ISO-8601 TEXT (SQLite) column into a calendar day.
// NULL leaves the zero time when nullable is set.
type dateColumn struct {
	dest     *time.Time
	nullable bool
}

func (c dateColumn) Scan(src any) error {
	if src == nil {
		if c.nullable {
			*c.dest = time.Time{}
			return nil
		}

		return fmt.Errorf("unexpected NULL date")
	}

	t, err := parseDateValue(src)
	if err != nil {
		return err
	}

	*c.dest = t

	return nil
}

// nullDateColumn scans a nullable date column into a *time.Time.
type nullDateColumn struct {
	dest **time.Time
}

func (c nullDateColumn) Scan(src any) error {
	if src == nil {
		*c.dest = nil
		return nil
	}

	t, err := parseDateValue(src)
	if err != nil {
		return err
	}

	*c.dest = &t

	return nil
}

func parseDateValue(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return lending.Today(v), nil
	case string:
		return parseDateText(v)
	case []byte:
		return parseDateText(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot scan %T into a date", src)
	}
}

func parseDateText(s string) (time.Time, error) {
	if len(s) > len(lending.DateLayout) {
		s = s[:len(lending.DateLayout)]
	}

	return lending.ParseDate(s)
}

// dateValue renders a calendar day the way both dialects compare and store it.
func dateValue(t time.Time) string {
	return lending.FormatDate(t)
}

// nullableDateValue renders a zero time as NULL.
func nullableDateValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return dateValue(t)
}

package lending

import "time"

const (
	// DateLayout is the wire and storage format of calendar days.
	DateLayout = "2006-01-02"

	secondsPerDay = 24 * 60 * 60
)

// Today strips the time of day from t and returns the calendar day as UTC midnight.
func Today(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EpochDay returns the number of days between 1970-01-01 and the calendar day of t.
func EpochDay(t time.Time) int64 {
	return Today(t).Unix() / secondsPerDay
}

// AddDays returns the calendar day n days after the calendar day of t.
func AddDays(t time.Time, n int) time.Time {
	return Today(t).AddDate(0, 0, n)
}

// FormatDate renders the calendar day of t in DateLayout.
func FormatDate(t time.Time) string {
	return Today(t).Format(DateLayout)
}

// ParseDate parses a DateLayout string into a calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}

	return Today(t), nil
}

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// parseOptionalDate parses a DateLayout day. An empty string is the zero time.
func parseOptionalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	t, err := lending.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not in %s format", lending.ErrInvalidInput, s, lending.DateLayout)
	}

	return t, nil
}

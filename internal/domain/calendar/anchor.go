// internal/domain/calendar/anchor.go
package calendar

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout used for manual anchor dates.
const DateLayout = "2006-01-02"

// Anchor is the user-supplied override of the observance period.
// An invalid Start means the remote lunar lookup decides.
type Anchor struct {
	Start sql.NullTime
	End   sql.NullTime
}

// IsManual reports whether the anchor overrides the remote lookup.
func (a Anchor) IsManual() bool { return a.Start.Valid }

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of whole calendar days from `from` to `to`.
// Each argument is read as a date in its own location, so a DST shift or a
// zone difference between the two never produces a fractional day.
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

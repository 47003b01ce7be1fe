// internal/domain/prayer/location.go
package prayer

import (
	"fmt"
	"strings"
	"time"
)

// Location identifies the city prayer times are computed for.
type Location struct {
	City    string
	Country string
}

func (l Location) String() string {
	return fmt.Sprintf("%s, %s", l.City, l.Country)
}

// IsZero reports whether no city is set.
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.City) == "" || strings.TrimSpace(l.Country) == ""
}

// Equal compares locations case-insensitively.
func (l Location) Equal(other Location) bool {
	return strings.EqualFold(strings.TrimSpace(l.City), strings.TrimSpace(other.City)) &&
		strings.EqualFold(strings.TrimSpace(l.Country), strings.TrimSpace(other.Country))
}

// Key identifies one fetch: a location on a calendar day.
type Key struct {
	City    string
	Country string
	Date    string // YYYY-MM-DD
}

// KeyFor normalises location and date into a cache key.
func KeyFor(loc Location, date time.Time) Key {
	return Key{
		City:    strings.ToLower(strings.TrimSpace(loc.City)),
		Country: strings.ToLower(strings.TrimSpace(loc.Country)),
		Date:    date.Format("2006-01-02"),
	}
}

func (k Key) String() string {
	return k.City + "|" + k.Country + "|" + k.Date
}

// internal/domain/prayer/timings.go
package prayer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ramadan_companion_bot/internal/domain/calendar"
)

// Name is a named prayer of the day.
type Name string

const (
	Fajr    Name = "Fajr"
	Sunrise Name = "Sunrise"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Names lists the prayers in the order they occur during the day.
var Names = []Name{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// TimeOfDay is an hour and minute in a location's local time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:mm" string. A trailing zone annotation
// such as "18:05 (CET)" is ignored.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return TimeOfDay{}, fmt.Errorf("%w: empty time", ErrParse)
	}
	if len(fields) > 1 && !strings.HasPrefix(fields[1], "(") {
		return TimeOfDay{}, fmt.Errorf("%w: unexpected time %q", ErrParse, value)
	}

	hh, mm, ok := strings.Cut(fields[0], ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:mm", ErrParse, value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid hour in %q", ErrParse, value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid minute in %q", ErrParse, value)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant t occurs on date's calendar day in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// DayTimings holds the prayer times of one location on one day.
type DayTimings struct {
	Location Location
	Date     time.Time // calendar day the timings belong to
	Times    map[Name]TimeOfDay
	Lunar    calendar.LunarDate
	Zone     *time.Location // zone the times are expressed in
}

// Key returns the cache key of these timings.
func (d *DayTimings) Key() Key {
	return KeyFor(d.Location, d.Date)
}

func (d *DayTimings) zone() *time.Location {
	if d.Zone != nil {
		return d.Zone
	}
	return d.Date.Location()
}

// At returns the absolute instant of the named prayer.
func (d *DayTimings) At(name Name) (time.Time, bool) {
	tod, ok := d.Times[name]
	if !ok {
		return time.Time{}, false
	}
	return tod.On(d.Date, d.zone()), true
}

// Boundary is the sunset instant that ends the fast on one day.
type Boundary struct {
	Key    Key
	At     time.Time
	Active bool // false once At has elapsed when the boundary was computed
}

// Boundary computes the sunset boundary as seen at now. A boundary that has
// already passed is returned inactive so nothing fires on it.
func (d *DayTimings) Boundary(now time.Time) (Boundary, error) {
	at, ok := d.At(Maghrib)
	if !ok {
		return Boundary{}, fmt.Errorf("%w: sunset time missing", ErrParse)
	}
	return Boundary{Key: d.Key(), At: at, Active: at.After(now)}, nil
}

// NextPrayer returns the first prayer after now. When every prayer of the day
// has passed it returns tomorrow's Fajr, approximated by today's time.
func (d *DayTimings) NextPrayer(now time.Time) (Name, time.Time) {
	for _, name := range Names {
		at, ok := d.At(name)
		if ok && at.After(now) {
			return name, at
		}
	}
	at, _ := d.At(Fajr)
	return Fajr, at.AddDate(0, 0, 1)
}

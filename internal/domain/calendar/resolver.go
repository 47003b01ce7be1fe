// internal/domain/calendar/resolver.go
package calendar

import (
	"context"
	"fmt"
	"time"
)

// RamadanMonth and ShawwalMonth are lunar month numbers.
const (
	RamadanMonth = 9
	ShawwalMonth = 10
)

// FallbackDay is returned when the remote lookup fails.
const FallbackDay DayIndex = 1

// ErrRemoteUnavailable marks a failed lunar lookup. Resolve never returns it.
var ErrRemoteUnavailable = fmt.Errorf("lunar calendar lookup unavailable")

// LunarDate is a date in the lunar calendar.
type LunarDate struct {
	Day   int
	Month int
	Year  int
}

// LunarLookup converts a gregorian date into the lunar calendar.
type LunarLookup interface {
	LookupLunarDate(ctx context.Context, date time.Time) (LunarDate, error)
}

// Source names the resolution path that produced a DayIndex.
type Source string

const (
	SourceManual   Source = "MANUAL"
	SourceRemote   Source = "REMOTE"
	SourceFallback Source = "FALLBACK"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Day      DayIndex
	Source   Source
	Degraded bool  // true when the lookup failed and Day is FallbackDay
	Err      error // cause of the degradation, wraps ErrRemoteUnavailable
}

// Resolve returns the day of the observance period for now.
// A manual anchor always wins over the remote lookup; a failed lookup
// degrades to FallbackDay instead of returning an error.
func Resolve(ctx context.Context, anchor Anchor, now time.Time, lookup LunarLookup) Resolution {
	if anchor.IsManual() {
		return Resolution{Day: ResolveManual(anchor, now), Source: SourceManual}
	}

	if lookup == nil {
		return Resolution{Day: FallbackDay, Source: SourceFallback, Degraded: true, Err: ErrRemoteUnavailable}
	}
	lunar, err := lookup.LookupLunarDate(ctx, now)
	if err != nil {
		return Resolution{
			Day:      FallbackDay,
			Source:   SourceFallback,
			Degraded: true,
			Err:      fmt.Errorf("%w: %w", ErrRemoteUnavailable, err),
		}
	}
	return Resolution{Day: FromLunar(lunar), Source: SourceRemote}
}

// ResolveManual applies the anchor arithmetic. anchor.Start must be valid.
func ResolveManual(anchor Anchor, now time.Time) DayIndex {
	diff := DaysBetween(anchor.Start.Time, now)
	switch {
	case diff < 0:
		return DayIndex(diff)
	case diff < PeriodLength:
		return DayIndex(diff + 1)
	}

	if anchor.End.Valid {
		diffEnd := DaysBetween(anchor.End.Time, now)
		switch {
		case diffEnd == 0:
			return Eid
		case diffEnd > 0:
			return DayIndex(PeriodLength + diffEnd)
		default:
			return PeriodLength
		}
	}

	if diff == PeriodLength {
		return Eid
	}
	return PeriodLength + 1
}

// FromLunar maps a lunar date onto a DayIndex.
func FromLunar(d LunarDate) DayIndex {
	switch {
	case d.Month == RamadanMonth:
		return DayIndex(d.Day)
	case d.Month == ShawwalMonth && d.Day == 1:
		return Eid
	case d.Month < RamadanMonth:
		return -1
	default:
		return PeriodLength + 1
	}
}

// internal/domain/calendar/day.go
package calendar

import (
	"fmt"
	"math"
)

// PeriodLength is the number of days the observance period is assumed to last.
const PeriodLength = 30

// DayIndex is the signed position of a date relative to the observance period.
//
//	< 0      days remaining until the period starts
//	1..30    day of the period
//	31+      days after the period ended
//	Eid      the festival day right after the period
type DayIndex int

// Eid marks the first day after the period. It is a marker, not a numeric
// day: no date arithmetic reaches it, so it never collides with 31+.
const Eid DayIndex = math.MinInt32

// Phase groups DayIndex values into the regions consumers care about.
type Phase string

const (
	PhaseBefore Phase = "BEFORE"
	PhaseDuring Phase = "DURING"
	PhaseEid    Phase = "EID"
	PhaseAfter  Phase = "AFTER"
)

func (d DayIndex) IsEid() bool { return d == Eid }

// Phase reports which region of the period d falls into.
// Zero is treated as "before": it is never produced by Resolve.
func (d DayIndex) Phase() Phase {
	switch {
	case d == Eid:
		return PhaseEid
	case d < 1:
		return PhaseBefore
	case d <= PeriodLength:
		return PhaseDuring
	default:
		return PhaseAfter
	}
}

// DaysUntilStart returns how many days remain before day 1, or 0 once the period started.
func (d DayIndex) DaysUntilStart() int {
	if d.Phase() != PhaseBefore {
		return 0
	}
	return -int(d)
}

func (d DayIndex) String() string {
	switch d.Phase() {
	case PhaseEid:
		return "Eid"
	case PhaseBefore:
		return fmt.Sprintf("%d days before Ramadan", d.DaysUntilStart())
	case PhaseAfter:
		return fmt.Sprintf("after Ramadan (%d)", int(d))
	default:
		return fmt.Sprintf("day %d of Ramadan", int(d))
	}
}

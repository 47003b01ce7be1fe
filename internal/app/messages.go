// internal/app/messages.go
package app

import (
	"fmt"
	"strings"
	"time"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/prayer"
)

// IftarDua is shown during the reflection phase.
const IftarDua = "ذَهَبَ الظَّمَأُ وَابْتَلَّتِ الْعُرُوقُ وَثَبَتَ الْأَجْرُ إِنْ شَاءَ اللَّهُ"

// FormatDay renders a resolution for /today and the morning digest.
func FormatDay(res calendar.Resolution) string {
	var b strings.Builder
	switch res.Day.Phase() {
	case calendar.PhaseBefore:
		fmt.Fprintf(&b, "🌙 Ramadan starts in %d day(s). May Allah let us reach it.", res.Day.DaysUntilStart())
	case calendar.PhaseEid:
		b.WriteString("🎉 Eid Mubarak! Taqabbal Allahu minna wa minkum.")
	case calendar.PhaseAfter:
		b.WriteString("Ramadan has ended. May Allah accept your fasting and prayers.")
	default:
		fmt.Fprintf(&b, "🌙 Today is day %d of Ramadan.", int(res.Day))
	}
	if res.Degraded {
		b.WriteString("\n⚠️ The lunar calendar service is unavailable, the day shown is a fallback.")
	}
	if res.Source == calendar.SourceManual {
		b.WriteString("\n(based on your manual start date)")
	}
	return b.String()
}

// FormatTimings renders the prayer times screen. st.Err is shown instead of
// the times when no timings could be fetched.
func FormatTimings(loc prayer.Location, st Status, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕌 Prayer times for %s\n", loc)

	if st.Timings == nil {
		if st.Err != nil {
			b.WriteString("⚠️ Could not load prayer times. Please check the city and country with /location.")
		} else {
			b.WriteString("Prayer times are still loading, try again in a moment.")
		}
		return b.String()
	}

	t := st.Timings
	if t.Lunar.Month != 0 {
		fmt.Fprintf(&b, "Hijri: %d/%d/%d\n", t.Lunar.Day, t.Lunar.Month, t.Lunar.Year)
	}
	b.WriteString("\n")
	for _, name := range prayer.Names {
		fmt.Fprintf(&b, "%-8s %s\n", name, t.Times[name])
	}
	next, at := t.NextPrayer(now)
	fmt.Fprintf(&b, "\nNext: %s at %s", next, at.In(now.Location()).Format("15:04"))
	if st.Err != nil {
		b.WriteString("\n⚠️ The last refresh failed, times may be outdated.")
	}
	return b.String()
}

// FormatPhase renders the message sent when the sunset sequence changes phase.
// It returns false for phases that produce no message.
func FormatPhase(state notification.State) (string, bool) {
	switch state.Phase {
	case notification.PhaseWarning:
		return fmt.Sprintf("🌅 Maghrib soon: %d seconds left.", state.SecondsRemaining), true
	case notification.PhaseAnnouncement:
		return "🕌 الله أكبر\nMaghrib has come, it is time for iftar.", true
	case notification.PhaseReflection:
		return "🤲 Iftar supplication:\n\n" + IftarDua, true
	default:
		return "", false
	}
}

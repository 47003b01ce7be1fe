package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

func TestDayServiceCachesLookups(t *testing.T) {
	lunar := &stubLunar{date: calendar.LunarDate{Day: 12, Month: 9, Year: 1447}}
	svc := NewDayService(lunar, NewZoneBook(time.UTC), testLogger())
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res := svc.Today(context.Background(), subscriber.Settings{}, now.Add(time.Duration(i)*time.Hour))
		if res.Day != 12 || res.Source != calendar.SourceRemote {
			t.Fatalf("got %+v, want remote day 12", res)
		}
	}
	if lunar.calls != 1 {
		t.Fatalf("expected one lookup per date, got %d", lunar.calls)
	}

	svc.Prune(now.AddDate(0, 0, 1))
	svc.Today(context.Background(), subscriber.Settings{}, now)
	if lunar.calls != 2 {
		t.Fatalf("pruned date should be looked up again, got %d calls", lunar.calls)
	}
}

func TestDayServiceDoesNotCacheFailures(t *testing.T) {
	lunar := &stubLunar{err: errors.New("boom")}
	svc := NewDayService(lunar, NewZoneBook(time.UTC), testLogger())
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	res := svc.Today(context.Background(), subscriber.Settings{}, now)
	if !res.Degraded || res.Day != calendar.FallbackDay {
		t.Fatalf("expected degraded fallback, got %+v", res)
	}

	lunar.err = nil
	lunar.date = calendar.LunarDate{Day: 3, Month: 9, Year: 1447}
	res = svc.Today(context.Background(), subscriber.Settings{}, now)
	if res.Degraded || res.Day != 3 {
		t.Fatalf("expected recovery after the failure, got %+v", res)
	}
}

func TestDayServiceManualAnchorSkipsLookup(t *testing.T) {
	lunar := &stubLunar{err: errors.New("must not be called")}
	svc := NewDayService(lunar, NewZoneBook(time.UTC), testLogger())
	settings := subscriber.Settings{
		Anchor: calendar.Anchor{
			Start: sql.NullTime{Time: time.Date(2026, time.February, 18, 0, 0, 0, 0, time.UTC), Valid: true},
		},
		Location: prayer.Location{City: "Gera", Country: "Germany"},
	}

	res := svc.Today(context.Background(), settings, time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC))
	if res.Day != 12 || res.Source != calendar.SourceManual {
		t.Fatalf("got %+v, want manual day 12", res)
	}
	if lunar.calls != 0 {
		t.Fatalf("manual anchor must not hit the lookup, got %d calls", lunar.calls)
	}
}

func TestDayServiceUsesTheLocationDate(t *testing.T) {
	berlin := mustZone(t, "Europe/Berlin")
	newYork := mustZone(t, "America/New_York")
	zones := NewZoneBook(berlin)
	nyc := prayer.Location{City: "New York", Country: "USA"}
	zones.Learn(nyc, newYork)

	lunar := &stubLunar{date: calendar.LunarDate{Day: 16, Month: 9, Year: 1447}}
	svc := NewDayService(lunar, zones, testLogger())
	// June 2 on the server, still June 1 in New York
	now := time.Date(2026, time.June, 2, 0, 30, 0, 0, berlin)

	svc.Today(context.Background(), subscriber.Settings{Location: nyc}, now)
	svc.Today(context.Background(), subscriber.Settings{Location: prayer.Location{City: "Gera", Country: "Germany"}}, now)
	if want := []string{"2026-06-01", "2026-06-02"}; len(lunar.asked) != 2 || lunar.asked[0] != want[0] || lunar.asked[1] != want[1] {
		t.Fatalf("looked up %v, want %v", lunar.asked, want)
	}

	start, _ := calendar.ParseDate("2026-06-02")
	manual := subscriber.Settings{
		Anchor:   calendar.Anchor{Start: sql.NullTime{Time: start, Valid: true}},
		Location: nyc,
	}
	if res := svc.Today(context.Background(), manual, now); res.Day != -1 {
		t.Fatalf("manual anchor in New York: got %d, want -1 (one day before)", res.Day)
	}
}

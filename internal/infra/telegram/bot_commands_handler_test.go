package telegram

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/app"
	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

type memorySubscribers struct {
	mu   sync.Mutex
	subs []*subscriber.Subscriber
}

func (m *memorySubscribers) Create(_ context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.subs) + 1)
	cp := *s
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memorySubscribers) find(match func(*subscriber.Subscriber) bool) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (m *memorySubscribers) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	return m.find(func(s *subscriber.Subscriber) bool { return s.ID == id })
}

func (m *memorySubscribers) GetByTelegramID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	return m.find(func(s *subscriber.Subscriber) bool { return s.TelegramID == id })
}

func (m *memorySubscribers) Update(_ context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID-1] = &cp
	return nil
}

func (m *memorySubscribers) ListActive(context.Context) ([]*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscriber.Subscriber
	for _, s := range m.subs {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySubscribers) ListAll(context.Context) ([]*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*subscriber.Subscriber(nil), m.subs...), nil
}

type staticCycles struct{ cycles []*notification.Cycle }

func (c *staticCycles) MarkFired(context.Context, *notification.Cycle) error { return nil }

func (c *staticCycles) IsFired(context.Context, int64, time.Time) (bool, error) { return false, nil }

func (c *staticCycles) ListCyclesByDate(context.Context, time.Time) ([]*notification.Cycle, error) {
	return c.cycles, nil
}

type staticStatus struct{ status map[int64]app.Status }

func (s *staticStatus) Tick(context.Context, time.Time) {}

func (s *staticStatus) Refresh(context.Context, time.Time, bool) error { return nil }

func (s *staticStatus) Reload(context.Context, int64, time.Time) error { return nil }

func (s *staticStatus) Status(id int64) (app.Status, bool) {
	st, ok := s.status[id]
	return st, ok
}

type fixedLunar struct{}

func (fixedLunar) LookupLunarDate(context.Context, time.Time) (calendar.LunarDate, error) {
	return calendar.LunarDate{Day: 12, Month: 9, Year: 1447}, nil
}

const adminID = 900

func newTestHandler() (*CommandHandler, *memorySubscribers, *staticStatus, *staticCycles) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	repo := &memorySubscribers{}
	status := &staticStatus{status: make(map[int64]app.Status)}
	cycles := &staticCycles{}
	settings := app.NewSettingsService(repo, status, prayer.Location{City: "Gera", Country: "Germany"}, calendar.Anchor{}, adminID, log)
	days := app.NewDayService(fixedLunar{}, app.NewZoneBook(time.UTC), log)

	h := NewCommandHandler(settings, days, status, cycles, adminID, time.UTC, log)
	h.now = func() time.Time { return time.Date(2026, time.March, 1, 18, 4, 30, 0, time.UTC) }
	return h, repo, status, cycles
}

func run(h *CommandHandler, fn commandFunc, senderID int64, args ...string) reply {
	return fn(context.Background(), h.logger, request{senderID: senderID, firstName: "Amina", args: args})
}

func TestStartAndStop(t *testing.T) {
	h, repo, _, _ := newTestHandler()

	r := run(h, h.start, 42)
	if !strings.Contains(r.text, "Assalamu alaikum, Amina") || !strings.Contains(r.text, "Gera, Germany") {
		t.Fatalf("unexpected welcome: %q", r.text)
	}
	if r = run(h, h.start, 42); !strings.Contains(r.text, "Welcome back") {
		t.Fatalf("unexpected second /start: %q", r.text)
	}

	if r = run(h, h.stop, 42); !strings.Contains(r.text, "Reminders stopped") {
		t.Fatalf("unexpected /stop: %q", r.text)
	}
	if sub, _ := repo.GetByTelegramID(context.Background(), 42); sub.IsActive {
		t.Fatal("subscriber still active after /stop")
	}
	if r = run(h, h.stop, 42); !strings.Contains(r.text, "not subscribed") {
		t.Fatalf("unexpected repeated /stop: %q", r.text)
	}
}

func TestTodayRequiresSubscription(t *testing.T) {
	h, _, _, _ := newTestHandler()

	if r := run(h, h.today, 42); !strings.Contains(r.text, "/start first") {
		t.Fatalf("unexpected reply: %q", r.text)
	}
	run(h, h.start, 42)
	r := run(h, h.today, 42)
	if !strings.Contains(r.text, "day 12 of Ramadan") || r.markup == nil {
		t.Fatalf("unexpected /today: %q", r.text)
	}
}

func TestTimesRendersStatus(t *testing.T) {
	h, _, status, _ := newTestHandler()
	run(h, h.start, 42)

	if r := run(h, h.times, 42); !strings.Contains(r.text, "still loading") {
		t.Fatalf("unexpected reply without status: %q", r.text)
	}

	status.status[1] = app.Status{Err: prayer.ErrNetwork}
	if r := run(h, h.times, 42); !strings.Contains(r.text, "Could not load prayer times") {
		t.Fatalf("fetch failure not shown: %q", r.text)
	}
}

func TestLocationCommand(t *testing.T) {
	h, repo, _, _ := newTestHandler()
	run(h, h.start, 42)

	if r := run(h, h.location, 42, "Berlin"); !strings.HasPrefix(r.text, "Usage") {
		t.Fatalf("expected usage, got %q", r.text)
	}
	r := run(h, h.location, 42, "Frankfurt", "am", "Main", "Germany")
	if !strings.Contains(r.text, "Frankfurt am Main, Germany") {
		t.Fatalf("unexpected reply: %q", r.text)
	}
	sub, _ := repo.GetByTelegramID(context.Background(), 42)
	if sub.City != "Frankfurt am Main" || sub.Country != "Germany" {
		t.Fatalf("location not stored: %+v", sub)
	}
}

func TestDateCommands(t *testing.T) {
	h, _, _, _ := newTestHandler()
	run(h, h.start, 42)

	if r := run(h, h.ramadanStart, 42, "18.02.2026"); !strings.Contains(r.text, "YYYY-MM-DD") {
		t.Fatalf("bad date accepted: %q", r.text)
	}
	r := run(h, h.ramadanStart, 42, "2026-02-18")
	if !strings.Contains(r.text, "2026-02-18") || !strings.Contains(r.text, "day 12 of Ramadan") {
		t.Fatalf("unexpected reply: %q", r.text)
	}
	if r = run(h, h.eid, 42, "2026-02-01"); !strings.Contains(r.text, "after the first day") {
		t.Fatalf("eid before start accepted: %q", r.text)
	}
	if r = run(h, h.clearDates, 42); !strings.Contains(r.text, "lunar calendar") {
		t.Fatalf("unexpected reply: %q", r.text)
	}
}

func TestSubscribersIsAdminOnly(t *testing.T) {
	h, _, _, cycles := newTestHandler()
	run(h, h.start, 42)
	cycles.cycles = []*notification.Cycle{{SubscriberID: 1}}

	if r := run(h, h.subscribers, 42); !strings.Contains(r.text, "not allowed") {
		t.Fatalf("non-admin got %q", r.text)
	}
	r := run(h, h.subscribers, adminID, "all")
	if !strings.Contains(r.text, "All subscribers (1)") || !strings.Contains(r.text, "iftar sent today") {
		t.Fatalf("unexpected overview: %q", r.text)
	}
	if r = run(h, h.subscribers, adminID, "everyone"); !strings.Contains(r.text, "Unknown argument") {
		t.Fatalf("unexpected reply: %q", r.text)
	}
}

func TestHelpShowsAdminSection(t *testing.T) {
	h, _, _, _ := newTestHandler()
	if r := run(h, h.help, 42); strings.Contains(r.text, "/subscribers") {
		t.Fatal("admin commands shown to a subscriber")
	}
	if r := run(h, h.help, adminID); !strings.Contains(r.text, "/subscribers") {
		t.Fatal("admin commands missing for the admin")
	}
}

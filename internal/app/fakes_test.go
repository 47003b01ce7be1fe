package app

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeSubscriberRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*subscriber.Subscriber
}

func newFakeSubscriberRepo(subs ...*subscriber.Subscriber) *fakeSubscriberRepo {
	r := &fakeSubscriberRepo{byID: make(map[int64]*subscriber.Subscriber)}
	for _, s := range subs {
		_ = r.Create(context.Background(), s)
	}
	return r
}

func (r *fakeSubscriberRepo) Create(_ context.Context, s *subscriber.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.TelegramID == s.TelegramID {
			return subscriber.ErrDuplicateTelegramID
		}
	}
	r.nextID++
	s.ID = r.nextID
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *fakeSubscriberRepo) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubscriberRepo) GetByTelegramID(_ context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.TelegramID == telegramID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (r *fakeSubscriberRepo) Update(_ context.Context, s *subscriber.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		return subscriber.ErrNotFound
	}
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *fakeSubscriberRepo) list(activeOnly bool) []*subscriber.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subscriber.Subscriber, 0, len(r.byID))
	for _, s := range r.byID {
		if activeOnly && !s.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeSubscriberRepo) ListActive(context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(true), nil
}

func (r *fakeSubscriberRepo) ListAll(context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(false), nil
}

type fakeCycleRepo struct {
	mu     sync.Mutex
	cycles []*notification.Cycle
}

func (r *fakeCycleRepo) MarkFired(_ context.Context, c *notification.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, c)
	return nil
}

func (r *fakeCycleRepo) IsFired(_ context.Context, subscriberID int64, boundaryAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cycles {
		if c.SubscriberID == subscriberID && c.BoundaryAt.Equal(boundaryAt) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCycleRepo) ListCyclesByDate(_ context.Context, day time.Time) ([]*notification.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Cycle
	for _, c := range r.cycles {
		if calendar.DaysBetween(c.CycleDate, day) == 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCycleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cycles)
}

// fakeFetcher serves sunset times per city. A city with a gate blocks until
// the gate is closed.
type fakeFetcher struct {
	mu      sync.Mutex
	maghrib map[string]prayer.TimeOfDay
	fail    map[string]error
	gates   map[string]chan struct{}
	calls   map[string]int
	zones   map[string]*time.Location
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		maghrib: make(map[string]prayer.TimeOfDay),
		fail:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		calls:   make(map[string]int),
		zones:   make(map[string]*time.Location),
	}
}

// setZone makes the city report its times in zone instead of UTC.
func (f *fakeFetcher) setZone(city string, zone *time.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones[strings.ToLower(city)] = zone
}

func (f *fakeFetcher) set(city string, tod prayer.TimeOfDay) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maghrib[strings.ToLower(city)] = tod
}

func (f *fakeFetcher) gate(city string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[strings.ToLower(city)] = ch
	return ch
}

func (f *fakeFetcher) callCount(city string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToLower(city)]
}

func (f *fakeFetcher) FetchTimings(ctx context.Context, loc prayer.Location, date time.Time) (*prayer.DayTimings, error) {
	city := strings.ToLower(loc.City)
	f.mu.Lock()
	f.calls[city]++
	gate := f.gates[city]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[city]; err != nil {
		return nil, err
	}
	tod, ok := f.maghrib[city]
	if !ok {
		return nil, prayer.ErrNetwork
	}
	zone := time.UTC
	if z, ok := f.zones[city]; ok {
		zone = z
	}
	return &prayer.DayTimings{
		Location: loc,
		Date:     date,
		Zone:     zone,
		Times: map[prayer.Name]prayer.TimeOfDay{
			prayer.Fajr:    {Hour: 5, Minute: 0},
			prayer.Sunrise: {Hour: 7, Minute: 0},
			prayer.Dhuhr:   {Hour: 12, Minute: 30},
			prayer.Asr:     {Hour: 15, Minute: 30},
			prayer.Maghrib: tod,
			prayer.Isha:    {Hour: 20, Minute: 30},
		},
	}, nil
}

type sentPhase struct {
	subscriberID int64
	phase        notification.Phase
	seconds      int
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentPhase
}

func (n *recordingNotifier) NotifyPhase(_ context.Context, sub *subscriber.Subscriber, st notification.State) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentPhase{subscriberID: sub.ID, phase: st.Phase, seconds: st.SecondsRemaining})
	return nil
}

func (n *recordingNotifier) phases() []notification.Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Phase, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.phase)
	}
	return out
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTelegramClient struct {
	mu       sync.Mutex
	messages []sentMessage
	failFor  map[int64]error
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[chatID]; err != nil {
		return err
	}
	c.messages = append(c.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

type stubLunar struct {
	mu    sync.Mutex
	date  calendar.LunarDate
	err   error
	calls int
	asked []string // dates looked up, YYYY-MM-DD in the date's own zone
}

func (s *stubLunar) LookupLunarDate(_ context.Context, date time.Time) (calendar.LunarDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.asked = append(s.asked, date.Format(calendar.DateLayout))
	return s.date, s.err
}

// internal/app/day_service.go
package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/subscriber"
)

// DayService resolves the day of Ramadan for a subscriber. Successful lunar
// lookups are cached per gregorian date; failures are not cached so the next
// call retries the remote service.
type DayService struct {
	lookup calendar.LunarLookup
	zones  *ZoneBook
	logger *logrus.Entry

	mu    sync.Mutex
	cache map[string]calendar.LunarDate
}

func NewDayService(lookup calendar.LunarLookup, zones *ZoneBook, logger *logrus.Entry) *DayService {
	return &DayService{
		lookup: lookup,
		zones:  zones,
		logger: logger,
		cache:  make(map[string]calendar.LunarDate),
	}
}

// Today resolves the day index for the settings snapshot at now. The date
// is the calendar day at the subscriber's location, not the server's.
func (s *DayService) Today(ctx context.Context, settings subscriber.Settings, now time.Time) calendar.Resolution {
	local := now.In(s.zones.For(settings.Location))
	res := calendar.Resolve(ctx, settings.Anchor, local, s)
	if res.Degraded {
		s.logger.WithError(res.Err).WithField("date", local.Format(calendar.DateLayout)).
			Warn("Lunar date lookup failed, falling back to day 1")
	}
	return res
}

// LookupLunarDate implements calendar.LunarLookup on top of the remote lookup.
func (s *DayService) LookupLunarDate(ctx context.Context, date time.Time) (calendar.LunarDate, error) {
	key := date.Format(calendar.DateLayout)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	if s.lookup == nil {
		return calendar.LunarDate{}, calendar.ErrRemoteUnavailable
	}
	lunar, err := s.lookup.LookupLunarDate(ctx, date)
	if err != nil {
		return calendar.LunarDate{}, err
	}

	s.mu.Lock()
	s.cache[key] = lunar
	s.mu.Unlock()
	return lunar, nil
}

// Prune drops cached lookups for days before today and returns how many were removed.
func (s *DayService) Prune(today time.Time) int {
	cutoff := today.Format(calendar.DateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.cache {
		if key < cutoff {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

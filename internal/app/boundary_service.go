// internal/app/boundary_service.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
)

// BoundaryService caches one set of timings per (location, day) and makes
// sure subscribers sharing a city share a single request.
type BoundaryService struct {
	fetcher prayer.Fetcher
	timeout time.Duration
	zones   *ZoneBook
	logger  *logrus.Entry

	group singleflight.Group
	mu    sync.RWMutex
	cache map[prayer.Key]*prayer.DayTimings
}

func NewBoundaryService(fetcher prayer.Fetcher, timeout time.Duration, zones *ZoneBook, logger *logrus.Entry) *BoundaryService {
	return &BoundaryService{
		fetcher: fetcher,
		timeout: timeout,
		zones:   zones,
		logger:  logger,
		cache:   make(map[prayer.Key]*prayer.DayTimings),
	}
}

// Timings returns the timings of loc on date. force skips the cache, which
// is how the hourly safety re-check picks up corrected times.
//
// The shared request is detached from ctx so that one caller giving up does
// not fail the others; a caller whose ctx is cancelled stops waiting at once.
func (s *BoundaryService) Timings(ctx context.Context, loc prayer.Location, date time.Time, force bool) (*prayer.DayTimings, error) {
	key := prayer.KeyFor(loc, date)
	if !force {
		if cached, ok := s.Cached(key); ok {
			return cached, nil
		}
	}

	ch := s.group.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		timings, err := s.fetcher.FetchTimings(fetchCtx, loc, calendar.StartOfDay(date))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = timings
		s.mu.Unlock()
		if s.zones.Learn(loc, timings.Zone) {
			s.logger.WithFields(logrus.Fields{"city": loc.City, "zone": timings.Zone.String()}).Info("Location time zone learned")
		}
		s.logger.WithFields(logrus.Fields{
			"city":    loc.City,
			"country": loc.Country,
			"date":    key.Date,
			"maghrib": timings.Times[prayer.Maghrib].String(),
		}).Info("Prayer times fetched")
		return timings, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch timings for %s on %s: %w", loc, key.Date, res.Err)
		}
		return res.Val.(*prayer.DayTimings), nil
	}
}

// Cached returns the cached timings for key, if any.
func (s *BoundaryService) Cached(key prayer.Key) (*prayer.DayTimings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	timings, ok := s.cache[key]
	return timings, ok
}

// Prune drops timings of days before today and returns how many were removed.
func (s *BoundaryService) Prune(today time.Time) int {
	cutoff := today.Format(calendar.DateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.cache {
		if key.Date < cutoff {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

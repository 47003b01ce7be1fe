// internal/app/zone_book.go
package app

import (
	"sync"
	"time"

	"ramadan_companion_bot/internal/domain/prayer"
)

// ZoneBook remembers the time zone of every location seen in fetched
// timings. A location's calendar day, and so its boundary key, is counted in
// its own zone; the fallback is used until the first fetch for it succeeded.
type ZoneBook struct {
	fallback *time.Location

	mu    sync.RWMutex
	zones map[string]*time.Location
}

func NewZoneBook(fallback *time.Location) *ZoneBook {
	if fallback == nil {
		fallback = time.Local
	}
	return &ZoneBook{fallback: fallback, zones: make(map[string]*time.Location)}
}

// For returns the zone of loc, or the fallback when it is not known yet.
func (z *ZoneBook) For(loc prayer.Location) *time.Location {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if zone, ok := z.zones[zoneKey(loc)]; ok {
		return zone
	}
	return z.fallback
}

// Learn records the zone of loc and reports whether it changed.
func (z *ZoneBook) Learn(loc prayer.Location, zone *time.Location) bool {
	if zone == nil {
		return false
	}
	key := zoneKey(loc)
	z.mu.Lock()
	defer z.mu.Unlock()
	if prev, ok := z.zones[key]; ok && prev.String() == zone.String() {
		return false
	}
	z.zones[key] = zone
	return true
}

// Today is the start of the calendar day at loc that contains now.
func (z *ZoneBook) Today(loc prayer.Location, now time.Time) time.Time {
	local := now.In(z.For(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

func zoneKey(loc prayer.Location) string {
	k := prayer.KeyFor(loc, time.Time{})
	return k.City + "|" + k.Country
}

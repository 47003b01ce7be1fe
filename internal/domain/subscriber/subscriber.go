package subscriber

import (
	"database/sql"
	"time"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
)

// Subscriber is a Telegram user receiving the daily companion messages.
type Subscriber struct {
	ID           int64
	TelegramID   int64
	FirstName    string
	City         string
	Country      string
	RamadanStart sql.NullTime // manual anchor, overrides the lunar lookup
	EidDate      sql.NullTime
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings is the read-only snapshot of a subscriber's configuration handed
// to the day resolver and the boundary fetcher.
type Settings struct {
	Anchor   calendar.Anchor
	Location prayer.Location
}

// Settings copies the subscriber's configuration.
func (s *Subscriber) Settings() Settings {
	return Settings{
		Anchor:   calendar.Anchor{Start: s.RamadanStart, End: s.EidDate},
		Location: s.Location(),
	}
}

func (s *Subscriber) Location() prayer.Location {
	return prayer.Location{City: s.City, Country: s.Country}
}

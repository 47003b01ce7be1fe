package config

import (
	"fmt"
	"strings" // For LogLevel normalization
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string `env:"TELEGRAM_TOKEN,required,notEmpty"`
	DatabaseURL     string `env:"DATABASE_URL,required,notEmpty"`
	AdminTelegramID int64  `env:"ADMIN_TELEGRAM_ID"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`

	AladhanBaseURL    string        `env:"ALADHAN_BASE_URL" envDefault:"https://api.aladhan.com/v1"`
	CalculationMethod int           `env:"CALCULATION_METHOD" envDefault:"2"` // 2 = ISNA
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	HTTPMaxRetries    uint          `env:"HTTP_MAX_RETRIES" envDefault:"3"`

	DefaultCity     string `env:"DEFAULT_CITY" envDefault:"Gera"`
	DefaultCountry  string `env:"DEFAULT_COUNTRY" envDefault:"Germany"`
	Timezone        string `env:"TIMEZONE" envDefault:"Local"`
	DefaultStartRaw string `env:"RAMADAN_START"` // optional YYYY-MM-DD applied to new subscribers
	DefaultEidRaw   string `env:"EID_DATE"`

	CronSpecTick        string `env:"CRON_SPEC_TICK" envDefault:"* * * * * *"`         // every second
	CronSpecRefresh     string `env:"CRON_SPEC_REFRESH" envDefault:"0 0 * * * *"`      // hourly safety re-check
	CronSpecRollover    string `env:"CRON_SPEC_ROLLOVER" envDefault:"5 0 * * * *"`     // hourly, each location rolls over at its own midnight
	CronSpecDailyDigest string `env:"CRON_SPEC_DAILY_DIGEST" envDefault:"0 0 5 * * *"` // 05:00 daily

	zone          *time.Location
	defaultAnchor calendar.Anchor
}

// Zone is the time zone the bot counts calendar days in.
func (c *AppConfig) Zone() *time.Location {
	if c.zone == nil {
		return time.Local
	}
	return c.zone
}

// DefaultAnchor is the manual anchor new subscribers start with, if any.
func (c *AppConfig) DefaultAnchor() calendar.Anchor { return c.defaultAnchor }

// DefaultLocation is the prayer location new subscribers start with.
func (c *AppConfig) DefaultLocation() prayer.Location {
	return prayer.Location{City: c.DefaultCity, Country: c.DefaultCountry}
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.AladhanBaseURL = strings.TrimRight(c.AladhanBaseURL, "/")

	if c.CalculationMethod < 0 {
		return fmt.Errorf("invalid CALCULATION_METHOD: %d", c.CalculationMethod)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid HTTP_TIMEOUT: %s", c.HTTPTimeout)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	c.zone = loc

	if c.DefaultStartRaw != "" {
		start, err := calendar.ParseDate(c.DefaultStartRaw)
		if err != nil {
			return fmt.Errorf("invalid RAMADAN_START: %w", err)
		}
		c.defaultAnchor.Start.Time, c.defaultAnchor.Start.Valid = start, true
	}
	if c.DefaultEidRaw != "" {
		eid, err := calendar.ParseDate(c.DefaultEidRaw)
		if err != nil {
			return fmt.Errorf("invalid EID_DATE: %w", err)
		}
		if !c.defaultAnchor.Start.Valid {
			return fmt.Errorf("EID_DATE requires RAMADAN_START")
		}
		c.defaultAnchor.End.Time, c.defaultAnchor.End.Valid = eid, true
	}
	return nil
}

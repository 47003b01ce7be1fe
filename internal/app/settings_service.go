// internal/app/settings_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

// Application-level errors for settings changes
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrNotSubscribed = fmt.Errorf("user is not subscribed")
var ErrAlreadyInactive = fmt.Errorf("subscription is already inactive")
var ErrInvalidLocation = fmt.Errorf("city and country are required")
var ErrEidBeforeStart = fmt.Errorf("eid date must be after the ramadan start date")

// SettingsService owns the subscribers' persisted configuration. Changes that
// affect the boundary are pushed to the notification service right away.
type SettingsService struct {
	repo            subscriber.Repository
	notifications   NotificationService
	defaultLocation prayer.Location
	defaultAnchor   calendar.Anchor
	adminTelegramID int64
	now             func() time.Time
	logger          *logrus.Entry
}

func NewSettingsService(
	repo subscriber.Repository,
	notifications NotificationService,
	defaultLocation prayer.Location,
	defaultAnchor calendar.Anchor,
	adminID int64,
	logger *logrus.Entry,
) *SettingsService {
	return &SettingsService{
		repo:            repo,
		notifications:   notifications,
		defaultLocation: defaultLocation,
		defaultAnchor:   defaultAnchor,
		adminTelegramID: adminID,
		now:             time.Now,
		logger:          logger,
	}
}

// Subscribe creates the subscriber or reactivates an inactive one. created is
// false when the user was already known.
func (s *SettingsService) Subscribe(ctx context.Context, telegramID int64, firstName string) (sub *subscriber.Subscriber, created bool, err error) {
	existing, err := s.repo.GetByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		if !existing.IsActive {
			existing.IsActive = true
			if err := s.repo.Update(ctx, existing); err != nil {
				return nil, false, fmt.Errorf("failed to reactivate subscriber: %w", err)
			}
			s.reload(ctx, existing)
		}
		return existing, false, nil
	case !errors.Is(err, subscriber.ErrNotFound):
		return nil, false, fmt.Errorf("failed to check existing subscriber: %w", err)
	}

	newSub := &subscriber.Subscriber{
		TelegramID:   telegramID,
		FirstName:    firstName,
		City:         s.defaultLocation.City,
		Country:      s.defaultLocation.Country,
		RamadanStart: s.defaultAnchor.Start,
		EidDate:      s.defaultAnchor.End,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, newSub); err != nil {
		if errors.Is(err, subscriber.ErrDuplicateTelegramID) {
			// lost a race with a concurrent /start
			existing, getErr := s.repo.GetByTelegramID(ctx, telegramID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load subscriber after duplicate insert: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create subscriber in repository: %w", err)
	}
	s.reload(ctx, newSub)
	return newSub, true, nil
}

// Unsubscribe deactivates the subscriber; notifications stop immediately.
func (s *SettingsService) Unsubscribe(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	sub, err := s.Get(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return sub, ErrAlreadyInactive
	}
	sub.IsActive = false
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscriber to inactive in repository: %w", err)
	}
	s.reload(ctx, sub)
	return sub, nil
}

// Get returns the subscriber or ErrNotSubscribed.
func (s *SettingsService) Get(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	sub, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			return nil, ErrNotSubscribed
		}
		return nil, fmt.Errorf("failed to get subscriber by Telegram ID: %w", err)
	}
	return sub, nil
}

// SetLocation changes the prayer location. The running sunset cycle, if any,
// is abandoned for the new city.
func (s *SettingsService) SetLocation(ctx context.Context, telegramID int64, loc prayer.Location) (*subscriber.Subscriber, error) {
	loc.City = strings.TrimSpace(loc.City)
	loc.Country = strings.TrimSpace(loc.Country)
	if loc.IsZero() {
		return nil, ErrInvalidLocation
	}
	return s.update(ctx, telegramID, func(sub *subscriber.Subscriber) error {
		sub.City, sub.Country = loc.City, loc.Country
		return nil
	})
}

// SetRamadanStart sets the manual anchor start date.
func (s *SettingsService) SetRamadanStart(ctx context.Context, telegramID int64, start time.Time) (*subscriber.Subscriber, error) {
	return s.update(ctx, telegramID, func(sub *subscriber.Subscriber) error {
		if sub.EidDate.Valid && !sub.EidDate.Time.After(start) {
			return ErrEidBeforeStart
		}
		sub.RamadanStart = sql.NullTime{Time: start, Valid: true}
		return nil
	})
}

// SetEidDate sets the manual anchor end date.
func (s *SettingsService) SetEidDate(ctx context.Context, telegramID int64, eid time.Time) (*subscriber.Subscriber, error) {
	return s.update(ctx, telegramID, func(sub *subscriber.Subscriber) error {
		if sub.RamadanStart.Valid && !eid.After(sub.RamadanStart.Time) {
			return ErrEidBeforeStart
		}
		sub.EidDate = sql.NullTime{Time: eid, Valid: true}
		return nil
	})
}

// ClearDates removes the manual anchor so the lunar lookup decides again.
func (s *SettingsService) ClearDates(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	return s.update(ctx, telegramID, func(sub *subscriber.Subscriber) error {
		sub.RamadanStart = sql.NullTime{}
		sub.EidDate = sql.NullTime{}
		return nil
	})
}

// ListSubscribers is the admin overview.
func (s *SettingsService) ListSubscribers(ctx context.Context, performingAdminID int64, includeInactive bool) ([]*subscriber.Subscriber, error) {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	if includeInactive {
		return s.repo.ListAll(ctx)
	}
	return s.repo.ListActive(ctx)
}

func (s *SettingsService) update(ctx context.Context, telegramID int64, change func(*subscriber.Subscriber) error) (*subscriber.Subscriber, error) {
	sub, err := s.Get(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if err := change(sub); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscriber: %w", err)
	}
	s.reload(ctx, sub)
	return sub, nil
}

func (s *SettingsService) reload(ctx context.Context, sub *subscriber.Subscriber) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Reload(ctx, sub.ID, s.now()); err != nil {
		s.logger.WithError(err).WithField("subscriber_id", sub.ID).Warn("Failed to reload notification tracker")
	}
}

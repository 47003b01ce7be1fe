// internal/app/digest_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/domain/subscriber"
	domainTelegram "ramadan_companion_bot/internal/domain/telegram"
)

// DigestService sends every active subscriber the day of Ramadan each morning.
type DigestService struct {
	subscribers subscriber.Repository
	days        *DayService
	client      domainTelegram.Client
	logger      *logrus.Entry
}

func NewDigestService(sr subscriber.Repository, days *DayService, client domainTelegram.Client, logger *logrus.Entry) *DigestService {
	return &DigestService{subscribers: sr, days: days, client: client, logger: logger}
}

// SendDailyDigest returns the number of messages delivered. Failures for
// single subscribers are logged and do not stop the run.
func (s *DigestService) SendDailyDigest(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active subscribers: %w", err)
	}

	sent := 0
	for _, sub := range subs {
		res := s.days.Today(ctx, sub.Settings(), now)
		text := fmt.Sprintf("Good morning, %s!\n%s", sub.FirstName, FormatDay(res))
		if err := s.client.SendMessage(sub.TelegramID, text, nil); err != nil {
			s.logger.WithError(err).WithField("subscriber_id", sub.ID).Error("Failed to send daily digest")
			continue
		}
		sent++
	}
	s.logger.WithFields(logrus.Fields{"sent": sent, "subscribers": len(subs)}).Info("Daily digest sent")
	return sent, nil
}

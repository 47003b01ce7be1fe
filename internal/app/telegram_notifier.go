// internal/app/telegram_notifier.go
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/subscriber"
	domainTelegram "ramadan_companion_bot/internal/domain/telegram"
)

// TelegramNotifier delivers phase changes as chat messages.
type TelegramNotifier struct {
	client domainTelegram.Client
	logger *logrus.Entry
}

func NewTelegramNotifier(client domainTelegram.Client, logger *logrus.Entry) *TelegramNotifier {
	return &TelegramNotifier{client: client, logger: logger}
}

func (n *TelegramNotifier) NotifyPhase(_ context.Context, sub *subscriber.Subscriber, state notification.State) error {
	text, ok := FormatPhase(state)
	if !ok {
		return nil
	}
	if err := n.client.SendMessage(sub.TelegramID, text, &telebot.SendOptions{DisableNotification: state.Phase == notification.PhaseReflection}); err != nil {
		return fmt.Errorf("send %s message to %d: %w", state.Phase, sub.TelegramID, err)
	}
	n.logger.WithFields(logrus.Fields{
		"subscriber_id": sub.ID,
		"phase":         state.Phase,
	}).Debug("Phase message sent")
	return nil
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/app"
	"ramadan_companion_bot/internal/domain/calendar"
)

// subscribers is the admin overview: /subscribers [active|all].
func (h *CommandHandler) subscribers(ctx context.Context, log *logrus.Entry, req request) reply {
	listType := "active" // Default to active
	if len(req.args) > 0 {
		listType = strings.ToLower(req.args[0])
	}
	log = log.WithField("list_type", listType)

	var includeInactive bool
	var title string
	switch listType {
	case "active":
		title = "Active subscribers"
	case "all":
		title = "All subscribers"
		includeInactive = true
	default:
		log.Warn("Invalid list type argument")
		return reply{text: "Unknown argument. Use 'active' or 'all', or leave it empty for active subscribers."}
	}

	subs, err := h.settings.ListSubscribers(ctx, req.senderID, includeInactive)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			log.Warn("Unauthorized access attempt")
			return reply{text: "Error: you are not allowed to use this command."}
		}
		log.WithError(err).Error("Failed to get list of subscribers")
		return reply{text: fmt.Sprintf("Failed to list subscribers: %s", err.Error())}
	}
	if len(subs) == 0 {
		return reply{text: "No subscribers found."}
	}

	today := calendar.StartOfDay(h.now().In(h.zone))
	firedToday := make(map[int64]bool)
	cycles, err := h.cycles.ListCyclesByDate(ctx, today)
	if err != nil {
		log.WithError(err).Warn("Failed to load today's notification cycles")
	}
	for _, c := range cycles {
		firedToday[c.SubscriberID] = true
	}

	log.WithField("subscribers_count", len(subs)).Info("Successfully retrieved subscriber list")

	var response strings.Builder
	fmt.Fprintf(&response, "--- %s (%d) ---\n", title, len(subs))
	for _, s := range subs {
		status := "inactive"
		if s.IsActive {
			status = "active"
		}
		anchor := "lunar"
		if s.RamadanStart.Valid {
			anchor = "from " + s.RamadanStart.Time.Format(calendar.DateLayout)
		}
		iftar := ""
		if firedToday[s.ID] {
			iftar = " ✅ iftar sent today"
		}
		fmt.Fprintf(&response, "ID: %d, Telegram ID: %d, %s, %s, %s, %s%s\n",
			s.ID, s.TelegramID, s.FirstName, s.Location(), anchor, status, iftar)
	}
	return reply{text: response.String()}
}

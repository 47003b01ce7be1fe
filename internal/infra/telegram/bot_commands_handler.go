// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"ramadan_companion_bot/internal/app"
	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

const handlerTimeout = 15 * time.Second

var (
	selector        = &telebot.ReplyMarkup{}
	btnRefreshToday = selector.Data("🔄 Refresh", "refresh_today")
	btnRefreshTimes = selector.Data("🔄 Refresh", "refresh_times")
)

// request is what a command handler needs from the incoming update.
type request struct {
	senderID  int64
	firstName string
	args      []string
}

type reply struct {
	text   string
	markup *telebot.ReplyMarkup
}

func (r reply) options() []interface{} {
	if r.markup == nil {
		return nil
	}
	return []interface{}{r.markup}
}

type commandFunc func(ctx context.Context, log *logrus.Entry, req request) reply

// CommandHandler serves the subscriber-facing bot commands.
type CommandHandler struct {
	settings        *app.SettingsService
	days            *app.DayService
	notifications   app.NotificationService
	cycles          notification.Repository
	adminTelegramID int64
	zone            *time.Location
	now             func() time.Time
	logger          *logrus.Entry
}

func NewCommandHandler(
	settings *app.SettingsService,
	days *app.DayService,
	notifications app.NotificationService,
	cycles notification.Repository,
	adminTelegramID int64,
	zone *time.Location,
	logger *logrus.Entry,
) *CommandHandler {
	return &CommandHandler{
		settings:        settings,
		days:            days,
		notifications:   notifications,
		cycles:          cycles,
		adminTelegramID: adminTelegramID,
		zone:            zone,
		now:             time.Now,
		logger:          logger,
	}
}

// Register installs all command and callback handlers on b. Handlers derive
// their contexts from ctx.
func (h *CommandHandler) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", h.wrap(ctx, "/start", h.start))
	b.Handle("/stop", h.wrap(ctx, "/stop", h.stop))
	b.Handle("/help", h.wrap(ctx, "/help", h.help))
	b.Handle("/today", h.wrap(ctx, "/today", h.today))
	b.Handle("/times", h.wrap(ctx, "/times", h.times))
	b.Handle("/location", h.wrap(ctx, "/location", h.location))
	b.Handle("/ramadan_start", h.wrap(ctx, "/ramadan_start", h.ramadanStart))
	b.Handle("/eid", h.wrap(ctx, "/eid", h.eid))
	b.Handle("/clear_dates", h.wrap(ctx, "/clear_dates", h.clearDates))
	b.Handle("/subscribers", h.wrap(ctx, "/subscribers", h.subscribers))

	b.Handle(&btnRefreshToday, h.wrapCallback(ctx, "refresh_today", h.today))
	b.Handle(&btnRefreshTimes, h.wrapCallback(ctx, "refresh_times", h.times))
}

func (h *CommandHandler) wrap(parent context.Context, command string, fn commandFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		log := h.logger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": sender.ID,
		})
		log.Info("Command received")

		ctx, cancel := context.WithTimeout(parent, handlerTimeout)
		defer cancel()
		r := fn(ctx, log, request{senderID: sender.ID, firstName: sender.FirstName, args: c.Args()})
		return c.Send(r.text, r.options()...)
	}
}

// wrapCallback re-renders the message the inline button belongs to.
func (h *CommandHandler) wrapCallback(parent context.Context, name string, fn commandFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Respond()
		}
		log := h.logger.WithFields(logrus.Fields{
			"callback":  name,
			"sender_id": sender.ID,
		})

		ctx, cancel := context.WithTimeout(parent, handlerTimeout)
		defer cancel()
		r := fn(ctx, log, request{senderID: sender.ID, firstName: sender.FirstName})
		if err := c.Edit(r.text, r.options()...); err != nil {
			// Telegram rejects edits that do not change the message
			log.WithError(err).Debug("Message not edited")
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Updated"})
	}
}

func (h *CommandHandler) start(ctx context.Context, log *logrus.Entry, req request) reply {
	sub, created, err := h.settings.Subscribe(ctx, req.senderID, req.firstName)
	if err != nil {
		log.WithError(err).Error("Failed to subscribe")
		return reply{text: "Something went wrong, please try again later."}
	}
	log = log.WithField("subscriber_id", sub.ID)
	if !created {
		log.Info("Known subscriber, subscription active")
		return reply{text: fmt.Sprintf("Welcome back, %s! Your reminders are on. Location: %s.", sub.FirstName, sub.Location())}
	}

	log.Info("New subscriber")
	var b strings.Builder
	fmt.Fprintf(&b, "Assalamu alaikum, %s! 🌙\n\n", sub.FirstName)
	fmt.Fprintf(&b, "I will count the days of Ramadan with you and remind you of iftar one minute before Maghrib in %s.\n", sub.Location())
	b.WriteString("Change the city with /location <city> <country>. /help lists everything I can do.")
	return reply{text: b.String()}
}

func (h *CommandHandler) stop(ctx context.Context, log *logrus.Entry, req request) reply {
	_, err := h.settings.Unsubscribe(ctx, req.senderID)
	switch {
	case err == nil:
		log.Info("Subscriber deactivated")
		return reply{text: "Reminders stopped. Send /start any time to turn them back on."}
	case errors.Is(err, app.ErrNotSubscribed), errors.Is(err, app.ErrAlreadyInactive):
		return reply{text: "You are not subscribed. Send /start to subscribe."}
	default:
		log.WithError(err).Error("Failed to unsubscribe")
		return reply{text: "Something went wrong, please try again later."}
	}
}

func (h *CommandHandler) help(_ context.Context, _ *logrus.Entry, req request) reply {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	b.WriteString("/today - day of Ramadan\n")
	b.WriteString("/times - prayer times for your city\n")
	b.WriteString("/location <city> <country> - set your city\n")
	b.WriteString("/ramadan_start <YYYY-MM-DD> - set the first day of Ramadan yourself\n")
	b.WriteString("/eid <YYYY-MM-DD> - set the date of Eid\n")
	b.WriteString("/clear_dates - use the lunar calendar again\n")
	b.WriteString("/stop - turn reminders off\n")
	if h.isAdmin(req.senderID) {
		b.WriteString("\nAdmin:\n/subscribers [active|all] - list subscribers\n")
	}
	return reply{text: b.String()}
}

func (h *CommandHandler) today(ctx context.Context, log *logrus.Entry, req request) reply {
	sub, err := h.settings.Get(ctx, req.senderID)
	if err != nil {
		return h.notSubscribed(log, err)
	}
	res := h.days.Today(ctx, sub.Settings(), h.now().In(h.zone))
	log.WithFields(logrus.Fields{
		"subscriber_id": sub.ID,
		"day":           int(res.Day),
		"source":        res.Source,
	}).Debug("Day resolved")
	return reply{text: app.FormatDay(res), markup: refreshMarkup(btnRefreshToday)}
}

func (h *CommandHandler) times(ctx context.Context, log *logrus.Entry, req request) reply {
	sub, err := h.settings.Get(ctx, req.senderID)
	if err != nil {
		return h.notSubscribed(log, err)
	}
	if !sub.IsActive {
		return reply{text: "Your reminders are off. Send /start to turn them on."}
	}
	st, _ := h.notifications.Status(sub.ID) // zero Status renders as "still loading"
	return reply{
		text:   app.FormatTimings(sub.Location(), st, h.now().In(h.zone)),
		markup: refreshMarkup(btnRefreshTimes),
	}
}

func (h *CommandHandler) location(ctx context.Context, log *logrus.Entry, req request) reply {
	if len(req.args) < 2 {
		return reply{text: "Usage: /location <city> <country>, e.g. /location Gera Germany"}
	}
	// the country is the last word, everything before it is the city
	loc := prayer.Location{
		City:    strings.Join(req.args[:len(req.args)-1], " "),
		Country: req.args[len(req.args)-1],
	}
	sub, err := h.settings.SetLocation(ctx, req.senderID, loc)
	if err != nil {
		if errors.Is(err, app.ErrInvalidLocation) {
			return reply{text: "Please give both a city and a country."}
		}
		return h.notSubscribed(log, err)
	}
	log.WithFields(logrus.Fields{"subscriber_id": sub.ID, "city": sub.City, "country": sub.Country}).Info("Location changed")
	return reply{text: fmt.Sprintf("📍 Location set to %s. Prayer times are loading, check /times in a moment.", sub.Location())}
}

func (h *CommandHandler) ramadanStart(ctx context.Context, log *logrus.Entry, req request) reply {
	return h.setDate(ctx, log, req, "/ramadan_start", h.settings.SetRamadanStart, "First day of Ramadan")
}

func (h *CommandHandler) eid(ctx context.Context, log *logrus.Entry, req request) reply {
	return h.setDate(ctx, log, req, "/eid", h.settings.SetEidDate, "Eid")
}

func (h *CommandHandler) setDate(
	ctx context.Context,
	log *logrus.Entry,
	req request,
	command string,
	set func(ctx context.Context, telegramID int64, date time.Time) (*subscriber.Subscriber, error),
	label string,
) reply {
	if len(req.args) != 1 {
		return reply{text: fmt.Sprintf("Usage: %s <YYYY-MM-DD>", command)}
	}
	date, err := calendar.ParseDate(req.args[0])
	if err != nil {
		return reply{text: "Please write the date as YYYY-MM-DD, e.g. 2026-02-18."}
	}
	sub, err := set(ctx, req.senderID, date)
	if err != nil {
		if errors.Is(err, app.ErrEidBeforeStart) {
			return reply{text: "Eid has to come after the first day of Ramadan."}
		}
		return h.notSubscribed(log, err)
	}
	log.WithFields(logrus.Fields{"subscriber_id": sub.ID, "date": req.args[0]}).Info("Manual date set")

	res := h.days.Today(ctx, sub.Settings(), h.now().In(h.zone))
	return reply{text: fmt.Sprintf("%s set to %s.\n%s", label, date.Format(calendar.DateLayout), app.FormatDay(res))}
}

func (h *CommandHandler) clearDates(ctx context.Context, log *logrus.Entry, req request) reply {
	if _, err := h.settings.ClearDates(ctx, req.senderID); err != nil {
		return h.notSubscribed(log, err)
	}
	log.Info("Manual dates cleared")
	return reply{text: "Manual dates removed, the lunar calendar decides the day again."}
}

func (h *CommandHandler) notSubscribed(log *logrus.Entry, err error) reply {
	if errors.Is(err, app.ErrNotSubscribed) {
		return reply{text: "You are not subscribed yet. Send /start first."}
	}
	log.WithError(err).Error("Command failed")
	return reply{text: "Something went wrong, please try again later."}
}

func (h *CommandHandler) isAdmin(telegramID int64) bool {
	return h.adminTelegramID != 0 && telegramID == h.adminTelegramID
}

func refreshMarkup(btn telebot.Btn) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(btn))
	return markup
}

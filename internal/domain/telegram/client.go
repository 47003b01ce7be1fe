package telegram

import "gopkg.in/telebot.v3"

// Client sends messages to subscribers. The notifier and the daily digest
// depend on this instead of *telebot.Bot so they can be tested with a fake.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

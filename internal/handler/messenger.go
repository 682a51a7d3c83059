package handler

import (
	"strings"

	tele "gopkg.in/telebot.v3"
)

// recipient addresses a chat by numeric id or @handle
type recipient string

func (r recipient) Recipient() string {
	return string(r)
}

func isChannel(to string) bool {
	return strings.HasPrefix(to, "@") || strings.HasPrefix(to, "-")
}

// Messenger sends HTML messages through the bot. Private chats get the
// main menu keyboard with every message.
type Messenger struct {
	bot *tele.Bot
}

// NewMessenger creates a messenger for bot
func NewMessenger(bot *tele.Bot) *Messenger {
	return &Messenger{bot: bot}
}

// SendText delivers text to a user id or channel
func (m *Messenger) SendText(to, text string) error {
	opts := []interface{}{tele.ModeHTML, tele.NoPreview}
	if !isChannel(to) {
		opts = append(opts, mainMenuMarkup())
	}

	_, err := m.bot.Send(recipient(to), text, opts...)
	return err
}

// SendJoinPrompt delivers the channel join prompt with the membership
// re-check button
func (m *Messenger) SendJoinPrompt(to, text string) error {
	_, err := m.bot.Send(recipient(to), text, tele.ModeHTML, tele.NoPreview, joinCheckMarkup())
	return err
}

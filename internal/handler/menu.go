package handler

import (
	"strings"
	"unicode"

	"viewbot/internal/conversation"

	tele "gopkg.in/telebot.v3"
)

// Reply keyboard labels
const (
	btnBalance  = "💰 Balance"
	btnRefer    = "🔗 Refer"
	btnWithdraw = "💸 Withdraw"
	btnRedeem   = "🎁 Redeem"
	btnHistory  = "📜 History"
	btnHelp     = "❓ Help"
)

const (
	msgJoinMissing   = "❌ You need to join all channels first!"
	msgJoinConfirmed = "✅ Awesome! You've unlocked the bot. Press /start to continue."
)

var btnJoinCheck = tele.Btn{Unique: "check_join", Text: "✅ Joined All! Tap Here"}

var menuIntents = map[string]conversation.Intent{
	btnBalance:  conversation.IntentBalance,
	btnRefer:    conversation.IntentReferral,
	btnWithdraw: conversation.IntentWithdraw,
	btnRedeem:   conversation.IntentRedeem,
	btnHistory:  conversation.IntentHistory,
	btnHelp:     conversation.IntentHelp,
}

// mainMenuMarkup returns the main menu keyboard
func mainMenuMarkup() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(btnBalance), menu.Text(btnRefer)),
		menu.Row(menu.Text(btnWithdraw), menu.Text(btnRedeem)),
		menu.Row(menu.Text(btnHistory), menu.Text(btnHelp)),
	)
	return menu
}

// joinCheckMarkup returns the inline keyboard attached to the join prompt
func joinCheckMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(btnJoinCheck))
	return markup
}

// cleanText removes all non-printable characters and emoji variation
// selectors; some clients append them to keyboard button text
func cleanText(data string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) && !unicode.Is(unicode.Variation_Selector, r) {
			return r
		}
		return -1
	}, strings.TrimSpace(data))
}

func menuIntent(text string) (conversation.Intent, bool) {
	intent, ok := menuIntents[cleanText(text)]
	return intent, ok
}

// commandArgs returns everything after the command word, newlines
// included
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}

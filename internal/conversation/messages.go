package conversation

import (
	"fmt"
	"html"
	"strings"

	"viewbot/internal/domain"
)

const historyLimit = 10

const (
	msgBanned        = "🚫 You are banned from using this bot. Contact support if you think this is a mistake."
	msgInternalError = "⚠️ Something went wrong on our side. Please try again later."
	msgCancelled     = "✖️ Cancelled."
	msgIdle          = "Use the menu below or /help to see what I can do."

	msgUnknownCommand         = "❔ Unknown command. Send /help to see what I can do."
	msgUnknownCommandInDialog = "❔ Unknown command. Answer the question above, or send /cancel to stop."

	msgAskLink   = "🔗 <b>Send the public Telegram post link you want to boost:</b>"
	msgAskAmount = "🔢 <b>How many views do you want?</b>\n1 point = 1 view. Minimum 10."
	msgAskCode   = "🔑 <b>Enter your redeem code:</b>"

	msgAskPassword   = "🔑 <b>Enter admin panel password:</b>"
	msgWrongPassword = "⛔️ <b>Incorrect password!</b>"
	msgAdminWelcome  = "✅ <b>Welcome to the admin panel!</b>\n\n" +
		"/gen_code &lt;points&gt;\n/ban &lt;user_id&gt;\n/unban &lt;user_id&gt;\n" +
		"/broadcast &lt;message&gt;\n/set_payout @channel\n" +
		"/add_channel @channel\n/remove_channel @channel\n/show_channels\n/stats"

	msgInvalidNumber = "❌ Please send a valid number (e.g. 100, 200, 500)."
	msgBelowMinimum  = "❗️ Minimum is 10 views."
	msgInvalidCode   = "❌ <b>Invalid or already used code.</b>\nPlease check your code and try again."

	msgHelp = "🤖 <b>How to use this bot:</b>\n\n" +
		"• <b>Earn points</b> by inviting friends with /refer\n" +
		"• <b>Withdraw</b> views by spending points (1 point = 1 view) with /withdraw\n" +
		"• <b>Redeem</b> codes for instant points with /redeem\n" +
		"• <b>History</b> of withdrawals and codes with /history\n" +
		"• /cancel stops the current step"
)

func welcomeText(created bool) string {
	text := "👋 <b>Welcome!</b>\n\nEarn points by inviting friends and redeeming codes, " +
		"then spend them on real views for your posts."
	if created {
		text += fmt.Sprintf("\n\n🎉 <b>Sign-up bonus:</b> you got <b>%d points</b> to start!", domain.SignupBonus)
	}
	return text
}

func balanceText(balance int) string {
	return fmt.Sprintf("💰 <b>Your points:</b> <code>%d</code>\n\n1 point = 1 view.", balance)
}

func referralText(link string, referrals int) string {
	return fmt.Sprintf(
		"🔗 <b>Your referral link:</b>\n<code>%s</code>\n\n👤 <b>Referrals:</b> <code>%d</code>\n\n"+
			"Earn <b>%d points</b> for each friend who joins!",
		html.EscapeString(link), referrals, domain.ReferralBonus,
	)
}

func historyText(entries []domain.Transaction) string {
	if len(entries) == 0 {
		return "📭 <b>Your history is empty!</b>"
	}

	var b strings.Builder
	b.WriteString("<b>📊 Your recent activity:</b>\n\n")
	for _, tx := range entries {
		switch tx.Kind {
		case domain.TxWithdraw:
			fmt.Fprintf(&b, "• <b>Withdraw:</b> %d views | %s\n", tx.Amount, html.EscapeString(tx.Link))
		case domain.TxRedeem:
			fmt.Fprintf(&b, "• <b>Redeem:</b> %d points | Code: <code>%s</code>\n", tx.Amount, html.EscapeString(tx.Code))
		}
	}
	return b.String()
}

func insufficientText(needed, balance int) string {
	return fmt.Sprintf("⏳ You need <b>%d</b> points, but you only have <b>%d</b>.", needed, balance)
}

func orderFailedText(reason string) string {
	return "❌ <b>Order failed:</b> " + html.EscapeString(reason)
}

func orderSuccessText(amount int, orderID string) string {
	return fmt.Sprintf("🎉 <b>Success!</b> Your order for <b>%d views</b> is being processed.\n🆔 Order ID: <code>%s</code>",
		amount, html.EscapeString(orderID))
}

func payoutText(userID string, amount int, link string) string {
	return fmt.Sprintf("💸 <b>User:</b> <a href=\"tg://user?id=%s\">%s</a>\n<b>Withdrew:</b> %d views\n<b>Post:</b> <a href=\"%s\">Link</a>",
		html.EscapeString(userID), html.EscapeString(userID), amount, html.EscapeString(link))
}

func redeemSuccessText(value int) string {
	return fmt.Sprintf("🎉 <b>Congratulations!</b> You received <b>%d points</b>.", value)
}

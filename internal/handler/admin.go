package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"viewbot/internal/domain"
	"viewbot/internal/middleware"
	"viewbot/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const msgAdminError = "⚠️ Operation failed. Check the logs."

func adminSession(c tele.Context) *service.AdminSession {
	session, _ := c.Get(middleware.AdminSessionKey).(*service.AdminSession)
	return session
}

func sendHTML(c tele.Context, text string) error {
	return c.Send(text, tele.ModeHTML)
}

// adminFailure answers a failed admin operation; validation problems are
// shown to the admin, anything else is logged
func (h *Handler) adminFailure(c tele.Context, operation string, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return sendHTML(c, "❌ "+html.EscapeString(verr.Error()))
	}

	h.logger.Error("Admin operation failed",
		zap.String("operation", operation),
		zap.String("admin_id", senderID(c)),
		zap.Error(err),
	)
	return c.Send(msgAdminError)
}

func (h *Handler) handleGenCode(c tele.Context) error {
	value, err := strconv.Atoi(commandArgs(c.Text()))
	if err != nil {
		return c.Send("Usage: /gen_code <points>")
	}

	code, err := adminSession(c).GenerateCode(value)
	if err != nil {
		return h.adminFailure(c, "gen_code", err)
	}
	return sendHTML(c, fmt.Sprintf("✅ <b>Code:</b> <code>%s</code>\n<b>Points:</b> %d", code, value))
}

func (h *Handler) handleBan(c tele.Context) error {
	userID := commandArgs(c.Text())
	if userID == "" {
		return c.Send("Usage: /ban <user_id>")
	}

	if err := adminSession(c).Ban(userID); err != nil {
		return h.adminFailure(c, "ban", err)
	}
	return sendHTML(c, fmt.Sprintf("🚫 User <code>%s</code> banned.", html.EscapeString(userID)))
}

func (h *Handler) handleUnban(c tele.Context) error {
	userID := commandArgs(c.Text())
	if userID == "" {
		return c.Send("Usage: /unban <user_id>")
	}

	if err := adminSession(c).Unban(userID); err != nil {
		return h.adminFailure(c, "unban", err)
	}
	return sendHTML(c, fmt.Sprintf("✅ User <code>%s</code> unbanned.", html.EscapeString(userID)))
}

func (h *Handler) handleBroadcast(c tele.Context) error {
	text := commandArgs(c.Text())
	if text == "" {
		return c.Send("Usage: /broadcast <message>")
	}

	result, err := adminSession(c).Broadcast(h.ctx, text)
	if err != nil && !errors.Is(err, context.Canceled) {
		return h.adminFailure(c, "broadcast", err)
	}
	return sendHTML(c, fmt.Sprintf("📣 <b>Broadcast finished.</b>\nSent: %d\nFailed: %d", result.Sent, result.Failed))
}

func (h *Handler) handleSetPayout(c tele.Context) error {
	channel := commandArgs(c.Text())
	if !strings.HasPrefix(channel, "@") {
		return c.Send("Usage: /set_payout @channel")
	}

	if err := adminSession(c).SetPayoutChannel(channel); err != nil {
		return h.adminFailure(c, "set_payout", err)
	}
	return sendHTML(c, "✅ Payout channel set to "+html.EscapeString(channel))
}

func (h *Handler) handleAddChannel(c tele.Context) error {
	channel := commandArgs(c.Text())

	added, err := adminSession(c).AddChannel(channel)
	if err != nil {
		return h.adminFailure(c, "add_channel", err)
	}
	if !added {
		return sendHTML(c, html.EscapeString(channel)+" is already listed.")
	}
	return sendHTML(c, "✅ Added "+html.EscapeString(channel))
}

func (h *Handler) handleRemoveChannel(c tele.Context) error {
	channel := commandArgs(c.Text())

	removed, err := adminSession(c).RemoveChannel(channel)
	if err != nil {
		return h.adminFailure(c, "remove_channel", err)
	}
	if !removed {
		return sendHTML(c, html.EscapeString(channel)+" is not listed.")
	}
	return sendHTML(c, "✅ Removed "+html.EscapeString(channel))
}

func (h *Handler) handleShowChannels(c tele.Context) error {
	channels := adminSession(c).Channels()
	if len(channels) == 0 {
		return c.Send("No eligibility channels configured.")
	}
	return sendHTML(c, "📢 <b>Eligibility channels:</b>\n"+html.EscapeString(strings.Join(channels, "\n")))
}

func (h *Handler) handleStats(c tele.Context) error {
	stats := adminSession(c).Stats()
	return sendHTML(c, fmt.Sprintf(
		"📊 <b>Bot statistics</b>\n\n👥 Users: %d\n🚫 Banned: %d\n💰 Points in circulation: %d",
		stats.TotalUsers, stats.TotalBanned, stats.TotalBalance,
	))
}

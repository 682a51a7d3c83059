package handler

import (
	"html"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// ChannelLister provides the channels a user must belong to
type ChannelLister interface {
	Channels() []string
}

// MembershipGate admits users who are members of every eligibility
// channel. A failed lookup counts as not a member.
type MembershipGate struct {
	bot      *tele.Bot
	channels ChannelLister
	logger   *zap.Logger
}

// NewMembershipGate creates a gate checking the channels listed by channels
func NewMembershipGate(bot *tele.Bot, channels ChannelLister, logger *zap.Logger) *MembershipGate {
	return &MembershipGate{bot: bot, channels: channels, logger: logger}
}

// IsEligible reports whether userID has joined all channels
func (g *MembershipGate) IsEligible(userID string) bool {
	for _, channel := range g.channels.Channels() {
		member, err := g.bot.ChatMemberOf(recipient(channel), recipient(userID))
		if err != nil {
			g.logger.Warn("Membership check failed",
				zap.String("user_id", userID),
				zap.String("channel", channel),
				zap.Error(err),
			)
			return false
		}

		switch member.Role {
		case tele.Creator, tele.Administrator, tele.Member:
		default:
			return false
		}
	}
	return true
}

// JoinPrompt lists the channels to join
func (g *MembershipGate) JoinPrompt() string {
	var b strings.Builder
	b.WriteString("📢 <b>Please join all our channels to use this bot:</b>\n\n")
	for _, channel := range g.channels.Channels() {
		b.WriteString("• ")
		b.WriteString(html.EscapeString(channel))
		b.WriteString("\n")
	}
	b.WriteString("\nThen tap <b>Joined All! Tap Here</b> below 👇")
	return b.String()
}

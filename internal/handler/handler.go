package handler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"viewbot/internal/conversation"
	"viewbot/internal/middleware"
	"viewbot/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Handler maps Telegram updates onto conversation events and admin
// commands
type Handler struct {
	ctx    context.Context
	bot    *tele.Bot
	engine *conversation.Engine
	admin  *service.AdminService
	logger *zap.Logger

	inflight sync.WaitGroup
}

// NewHandler creates a new handler instance. Cancelling ctx stops
// broadcasts; conversation events run to completion, see Wait.
func NewHandler(
	ctx context.Context,
	bot *tele.Bot,
	engine *conversation.Engine,
	admin *service.AdminService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		ctx:    ctx,
		bot:    bot,
		engine: engine,
		admin:  admin,
		logger: logger,
	}
}

var commandIntents = map[string]conversation.Intent{
	"/balance":  conversation.IntentBalance,
	"/refer":    conversation.IntentReferral,
	"/history":  conversation.IntentHistory,
	"/help":     conversation.IntentHelp,
	"/withdraw": conversation.IntentWithdraw,
	"/redeem":   conversation.IntentRedeem,
	"/admin":    conversation.IntentAdmin,
	"/cancel":   conversation.IntentCancel,
}

// RegisterHandlers registers all bot handlers
func (h *Handler) RegisterHandlers() {
	// User commands
	h.bot.Handle("/start", h.handleStart)
	for command, intent := range commandIntents {
		h.bot.Handle(command, h.dispatch(intent))
	}

	// Menu buttons and dialog input
	h.bot.Handle(tele.OnText, h.handleText)
	h.bot.Handle(&btnJoinCheck, h.handleJoinCheck)

	// Admin commands
	admin := h.bot.Group()
	admin.Use(middleware.AdminOnly(h.admin, h.logger))
	admin.Handle("/gen_code", h.handleGenCode)
	admin.Handle("/ban", h.handleBan)
	admin.Handle("/unban", h.handleUnban)
	admin.Handle("/broadcast", h.handleBroadcast)
	admin.Handle("/set_payout", h.handleSetPayout)
	admin.Handle("/add_channel", h.handleAddChannel)
	admin.Handle("/remove_channel", h.handleRemoveChannel)
	admin.Handle("/show_channels", h.handleShowChannels)
	admin.Handle("/stats", h.handleStats)
}

func senderID(c tele.Context) string {
	if c.Sender() == nil {
		return ""
	}
	return strconv.FormatInt(c.Sender().ID, 10)
}

// track marks an update as in flight until the returned func is called
func (h *Handler) track() func() {
	h.inflight.Add(1)
	return h.inflight.Done
}

// Wait blocks until in-flight updates finish or timeout passes, and
// reports whether they all finished. Call it after the bot stopped
// polling.
func (h *Handler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (h *Handler) handle(ev conversation.Event) error {
	defer h.track()()

	// shutdown must not cut a panel call short: the order may already be
	// placed and still needs its debit
	ctx := context.WithoutCancel(h.ctx)
	if err := h.engine.Handle(ctx, ev); err != nil {
		h.logger.Error("Failed to handle event",
			zap.String("user_id", ev.UserID),
			zap.Stringer("intent", ev.Intent),
			zap.Error(err),
		)
	}
	return nil
}

func (h *Handler) dispatch(intent conversation.Intent) tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.handle(conversation.Event{UserID: senderID(c), Intent: intent})
	}
}

// handleStart passes the deep-link payload on as the referrer id
func (h *Handler) handleStart(c tele.Context) error {
	userID := senderID(c)

	h.logger.Info("User started bot", zap.String("user_id", userID))

	return h.handle(conversation.Event{
		UserID:  userID,
		Intent:  conversation.IntentStart,
		Payload: commandArgs(c.Text()),
	})
}

// handleText routes menu buttons to their intent and everything else to
// the current dialog
func (h *Handler) handleText(c tele.Context) error {
	if intent, ok := menuIntent(c.Text()); ok {
		return h.handle(conversation.Event{UserID: senderID(c), Intent: intent})
	}
	return h.handle(conversation.Event{
		UserID: senderID(c),
		Intent: conversation.IntentText,
		Text:   c.Text(),
	})
}

// handleJoinCheck re-runs the membership check from the join prompt button
func (h *Handler) handleJoinCheck(c tele.Context) error {
	defer h.track()()

	userID := senderID(c)
	if !h.engine.Gate.IsEligible(userID) {
		return c.Respond(&tele.CallbackResponse{Text: msgJoinMissing, ShowAlert: true})
	}

	if err := c.Respond(); err != nil {
		h.logger.Warn("Failed to answer callback", zap.String("user_id", userID), zap.Error(err))
	}
	return h.engine.Messenger.SendText(userID, msgJoinConfirmed)
}

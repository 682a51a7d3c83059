package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"viewbot/internal/conversation"
	"viewbot/internal/domain"
	"viewbot/internal/metrics"
	"viewbot/internal/repository/memory"
	"viewbot/internal/service"
	"viewbot/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

const testPassword = "pw"

type botFixture struct {
	bot      *tele.Bot
	api      *testutil.TelegramServer
	orders   *testutil.MockOrderPlacer
	ledger   *service.LedgerService
	settings *service.SettingsService
	handler  *Handler
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	return newBotFixtureWithContext(t, context.Background())
}

func newBotFixtureWithContext(t *testing.T, ctx context.Context) *botFixture {
	t.Helper()

	logger := testutil.NewTestLogger()
	store := testutil.NewMemoryStore()
	api := testutil.NewTelegramServer(t)
	bot := testutil.NewTestBot(t, api)

	ledger, err := service.NewLedgerService(store, logger)
	require.NoError(t, err)
	codes, err := service.NewCodeService(store, logger)
	require.NoError(t, err)
	bans, err := service.NewBanService(store, logger)
	require.NoError(t, err)
	settings, err := service.NewSettingsService(store, domain.Settings{}, logger)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	messenger := NewMessenger(bot)
	auth := service.NewAuthService(ledger, bans, testPassword)
	orders := new(testutil.MockOrderPlacer)

	engine := conversation.NewEngine(conversation.Deps{
		Ledger:      ledger,
		Codes:       codes,
		Bans:        bans,
		Settings:    settings,
		Auth:        auth,
		Orders:      orders,
		Gate:        NewMembershipGate(bot, settings, logger),
		Messenger:   messenger,
		States:      memory.NewStateStore(),
		Metrics:     m,
		Logger:      logger,
		BotUsername: "ViewBot",
	})

	admin := service.NewAdminService(service.AdminDeps{
		Auth:                 auth,
		Ledger:               ledger,
		Codes:                codes,
		Bans:                 bans,
		Settings:             settings,
		Stats:                service.NewStatsService(ledger, bans, m, logger),
		Messenger:            messenger,
		Metrics:              m,
		Logger:               logger,
		BroadcastConcurrency: 2,
	})

	h := NewHandler(ctx, bot, engine, admin, logger)
	h.RegisterHandlers()

	return &botFixture{bot: bot, api: api, orders: orders, ledger: ledger, settings: settings, handler: h}
}

func (f *botFixture) say(userID int64, text string) {
	f.bot.ProcessUpdate(tele.Update{
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func (f *botFixture) pressJoinCheck(userID int64) {
	f.bot.ProcessUpdate(tele.Update{
		Callback: &tele.Callback{
			ID:     "cb-1",
			Sender: &tele.User{ID: userID},
			Data:   "\f" + btnJoinCheck.Unique,
		},
	})
}

func (f *botFixture) last(t *testing.T, chatID string) string {
	t.Helper()
	texts := f.api.SentTo(chatID)
	require.NotEmpty(t, texts, "nothing sent to %s", chatID)
	return texts[len(texts)-1]
}

func TestHandler_StartWithReferral(t *testing.T) {
	f := newBotFixture(t)

	f.say(1, "/start")
	f.say(2, "/start 1")

	referrer, ok := f.ledger.Account("1")
	require.True(t, ok)
	assert.Equal(t, 750, referrer.Balance)
	assert.Contains(t, f.last(t, "2"), "Sign-up bonus")
}

func TestHandler_MenuButtons(t *testing.T) {
	f := newBotFixture(t)
	f.say(1, "/start")

	f.say(1, btnBalance)
	assert.Contains(t, f.last(t, "1"), "500")

	f.say(1, btnRefer)
	assert.Contains(t, f.last(t, "1"), "https://t.me/ViewBot?start=1")

	f.say(1, "/history")
	assert.Contains(t, f.last(t, "1"), "empty")
}

func TestHandler_WithdrawDialog(t *testing.T) {
	f := newBotFixture(t)
	f.orders.On("PlaceOrder", mock.Anything, "https://t.me/c/5", 100).Return(domain.OrderAccepted("777")).Once()
	f.say(1, "/start")

	f.say(1, btnWithdraw)
	f.say(1, "https://t.me/c/5")
	f.say(1, "100")

	acc, _ := f.ledger.Account("1")
	assert.Equal(t, 400, acc.Balance)
	assert.Contains(t, f.last(t, "1"), "777")
	f.orders.AssertExpectations(t)
}

func TestHandler_AdminCommands(t *testing.T) {
	f := newBotFixture(t)
	f.say(1, "/start")
	f.say(2, "/start")

	f.say(1, "/stats")
	assert.Contains(t, f.last(t, "1"), "Admins only")

	f.say(1, "/admin")
	f.say(1, testPassword)
	assert.Contains(t, f.last(t, "1"), "admin panel")

	f.say(1, "/gen_code 300")
	assert.Contains(t, f.last(t, "1"), "Points:</b> 300")

	f.say(1, "/gen_code lots")
	assert.Contains(t, f.last(t, "1"), "Usage")

	f.say(1, "/gen_code 9223372036854775807")
	assert.Contains(t, f.last(t, "1"), "must not exceed")

	f.say(1, "/stats")
	assert.Contains(t, f.last(t, "1"), "Users: 2")

	f.say(1, "/add_channel news")
	assert.Contains(t, f.last(t, "1"), "invalid channel")

	f.say(1, "/set_payout @payouts")
	assert.Equal(t, "@payouts", f.settings.PayoutChannel())

	f.say(1, "/broadcast hello\neveryone")
	assert.Equal(t, "hello\neveryone", f.last(t, "2"))
	assert.Contains(t, f.last(t, "1"), "Sent: 2")

	f.say(1, "/ban 2")
	f.say(2, btnBalance)
	assert.Contains(t, f.last(t, "2"), "banned")
}

func TestHandler_GateBlocksStart(t *testing.T) {
	f := newBotFixture(t)
	_, err := f.settings.AddChannel("@news")
	require.NoError(t, err)
	f.api.Respond("getChatMember", `{"ok":true,"result":{"status":"left","user":{"id":1}}}`)

	f.say(1, "/start")

	_, exists := f.ledger.Account("1")
	assert.False(t, exists)
	assert.True(t, strings.Contains(f.last(t, "1"), "@news"))
}

func TestHandler_GatePromptCarriesJoinCheckButton(t *testing.T) {
	f := newBotFixture(t)
	_, err := f.settings.AddChannel("@news")
	require.NoError(t, err)
	f.api.Respond("getChatMember", `{"ok":true,"result":{"status":"left","user":{"id":1}}}`)

	f.say(1, "/start")

	calls := f.api.Calls("sendMessage")
	require.Len(t, calls, 1)
	markup, _ := calls[0].Params["reply_markup"].(string)
	assert.Contains(t, markup, "inline_keyboard")
	assert.Contains(t, markup, "check_join")
}

func TestHandler_JoinCheck(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		expectAlert   bool
		expectMessage bool
	}{
		{name: "still missing", status: "left", expectAlert: true},
		{name: "joined", status: "member", expectMessage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBotFixture(t)
			_, err := f.settings.AddChannel("@news")
			require.NoError(t, err)
			f.api.Respond("getChatMember", `{"ok":true,"result":{"status":"`+tt.status+`","user":{"id":1}}}`)

			f.pressJoinCheck(1)

			answers := f.api.Calls("answerCallbackQuery")
			require.Len(t, answers, 1)
			assert.Equal(t, "cb-1", answers[0].Params["callback_query_id"])
			if tt.expectAlert {
				assert.Equal(t, msgJoinMissing, answers[0].Params["text"])
				assert.Equal(t, true, answers[0].Params["show_alert"])
			}

			sent := f.api.SentTo("1")
			if tt.expectMessage {
				assert.Equal(t, []string{msgJoinConfirmed}, sent)
			} else {
				assert.Empty(t, sent)
			}
			assert.Len(t, f.api.Calls("getChatMember"), 1)
		})
	}
}

func TestHandler_EventsOutliveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newBotFixtureWithContext(t, ctx)
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.orders.On("PlaceOrder", live, "https://t.me/c/5", 100).Return(domain.OrderAccepted("778")).Once()

	f.say(1, "/start")
	f.say(1, btnWithdraw)
	f.say(1, "https://t.me/c/5")
	cancel()
	f.say(1, "100")

	f.orders.AssertExpectations(t)
	acc, _ := f.ledger.Account("1")
	assert.Equal(t, 400, acc.Balance)
}

func TestHandler_WaitDrainsInflightUpdates(t *testing.T) {
	f := newBotFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.orders.On("PlaceOrder", mock.Anything, "https://t.me/c/5", 100).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(domain.OrderAccepted("779")).Once()

	f.say(1, "/start")
	f.say(1, btnWithdraw)
	f.say(1, "https://t.me/c/5")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.say(1, "100")
	}()
	<-entered

	assert.False(t, f.handler.Wait(20*time.Millisecond))

	close(release)
	assert.True(t, f.handler.Wait(time.Second))
	<-done

	acc, _ := f.ledger.Account("1")
	assert.Equal(t, 400, acc.Balance)
}

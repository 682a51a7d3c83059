package middleware

import (
	"testing"

	"viewbot/internal/domain"
	"viewbot/internal/metrics"
	"viewbot/internal/service"
	"viewbot/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func newAdminService(t *testing.T) (*service.AdminService, *service.LedgerService, *service.BanService) {
	t.Helper()
	logger := testutil.NewTestLogger()
	store := testutil.NewMemoryStore()

	ledger, err := service.NewLedgerService(store, logger)
	require.NoError(t, err)
	codes, err := service.NewCodeService(store, logger)
	require.NoError(t, err)
	bans, err := service.NewBanService(store, logger)
	require.NoError(t, err)
	settings, err := service.NewSettingsService(store, domain.Settings{}, logger)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())

	admin := service.NewAdminService(service.AdminDeps{
		Auth:      service.NewAuthService(ledger, bans, "pw"),
		Ledger:    ledger,
		Codes:     codes,
		Bans:      bans,
		Settings:  settings,
		Stats:     service.NewStatsService(ledger, bans, m, logger),
		Messenger: testutil.NewRecordingMessenger(),
		Metrics:   m,
		Logger:    logger,
	})
	return admin, ledger, bans
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(t *testing.T, ledger *service.LedgerService, bans *service.BanService)
		expectNext   bool
		expectedText string
	}{
		{
			name:         "unknown user",
			setup:        func(*testing.T, *service.LedgerService, *service.BanService) {},
			expectedText: "Admins only",
		},
		{
			name: "regular user",
			setup: func(t *testing.T, ledger *service.LedgerService, _ *service.BanService) {
				_, err := ledger.GetAccount("7")
				require.NoError(t, err)
			},
			expectedText: "Admins only",
		},
		{
			name: "admin",
			setup: func(t *testing.T, ledger *service.LedgerService, _ *service.BanService) {
				_, err := ledger.GetAccount("7")
				require.NoError(t, err)
				require.NoError(t, ledger.SetAdmin("7", true))
			},
			expectNext: true,
		},
		{
			name: "banned admin",
			setup: func(t *testing.T, ledger *service.LedgerService, bans *service.BanService) {
				_, err := ledger.GetAccount("7")
				require.NoError(t, err)
				require.NoError(t, ledger.SetAdmin("7", true))
				require.NoError(t, bans.Ban("7"))
			},
			expectedText: "banned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, ledger, bans := newAdminService(t)
			tt.setup(t, ledger, bans)

			api := testutil.NewTelegramServer(t)
			bot := testutil.NewTestBot(t, api)
			c := bot.NewContext(tele.Update{Message: &tele.Message{
				Sender: &tele.User{ID: 7},
				Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
				Text:   "/stats",
			}})

			called := false
			next := func(c tele.Context) error {
				called = true
				session, ok := c.Get(AdminSessionKey).(*service.AdminSession)
				require.True(t, ok)
				assert.Equal(t, "7", session.UserID())
				return nil
			}

			err := AdminOnly(admin, testutil.NewTestLogger())(next)(c)

			require.NoError(t, err)
			assert.Equal(t, tt.expectNext, called)
			if tt.expectedText != "" {
				texts := api.SentTo("7")
				require.Len(t, texts, 1)
				assert.Contains(t, texts[0], tt.expectedText)
			}
		})
	}
}

package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viewbot/internal/config"
	"viewbot/internal/conversation"
	"viewbot/internal/domain"
	"viewbot/internal/handler"
	"viewbot/internal/metrics"
	"viewbot/internal/panel"
	"viewbot/internal/repository"
	"viewbot/internal/repository/file"
	"viewbot/internal/repository/memory"
	"viewbot/internal/repository/postgres"
	"viewbot/internal/repository/redis"
	"viewbot/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const (
	statsInterval = time.Minute
	// drainTimeout bounds how long shutdown waits for in-flight updates
	drainTimeout = 30 * time.Second
)

// Application wires configuration, storage, services and the bot
type Application struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *sql.DB
	snapshots repository.SnapshotStore
	states    repository.StateStore
	redis     *redis.StateStore

	metrics  *metrics.Metrics
	registry *prometheus.Registry

	ledger *service.LedgerService
	stats  *service.StatsService

	bot           *tele.Bot
	handler       *handler.Handler
	metricsServer *http.Server

	// cancelUpdates stops broadcasts once in-flight updates were drained
	cancelUpdates context.CancelFunc
}

// NewApplication creates an uninitialized application
func NewApplication() *Application {
	return &Application{}
}

// Init builds every component; ctx bounds startup
func (a *Application) Init(ctx context.Context) error {
	if err := a.initConfig(); err != nil {
		return err
	}

	if err := a.initLogger(); err != nil {
		return err
	}

	a.logger.Info("Starting viewbot",
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("state", a.cfg.State.Backend),
	)

	if err := a.initStorage(ctx); err != nil {
		return err
	}

	if err := a.initState(); err != nil {
		return err
	}

	a.initMetrics()

	return a.initBot()
}

func (a *Application) initConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogger() error {
	logger, err := config.NewLogger(a.cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *Application) initStorage(ctx context.Context) error {
	if a.cfg.Storage.Driver == config.StorageFile {
		store, err := file.NewSnapshotStore(a.cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("failed to open snapshot directory: %w", err)
		}
		a.snapshots = store
		a.logger.Info("Using file snapshots", zap.String("dir", a.cfg.Storage.Dir))
		return nil
	}

	db, err := connectDatabase(ctx, a.cfg.DSN(), a.logger)
	if err != nil {
		return err
	}
	a.db = db

	a.logger.Info("Database connection established")

	if err := runMigrations(db, false, a.logger); err != nil {
		return err
	}

	a.snapshots = postgres.NewSnapshotRepo(db)
	return nil
}

func (a *Application) initState() error {
	if a.cfg.State.Backend == config.StateMemory {
		a.states = memory.NewStateStore()
		return nil
	}

	store, err := redis.NewStateStore(redis.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	a.redis = store
	a.states = store

	a.logger.Info("Dialog state stored in Redis", zap.String("addr", a.cfg.Redis.Addr))
	return nil
}

func (a *Application) initMetrics() {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		a.metricsServer = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
}

func (a *Application) initBot() error {
	ledger, err := service.NewLedgerService(a.snapshots, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	codes, err := service.NewCodeService(a.snapshots, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load codes: %w", err)
	}
	bans, err := service.NewBanService(a.snapshots, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load ban list: %w", err)
	}
	settings, err := service.NewSettingsService(a.snapshots, domain.Settings{
		PayoutChannel:       a.cfg.PayoutChannel,
		EligibilityChannels: a.cfg.Eligibility,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  a.cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			a.logger.Error("Update handling failed", zap.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	a.bot = bot

	a.logger.Info("Telegram bot initialized", zap.String("username", bot.Me.Username))

	auth := service.NewAuthService(ledger, bans, a.cfg.AdminPassword)
	stats := service.NewStatsService(ledger, bans, a.metrics, a.logger)
	messenger := handler.NewMessenger(bot)

	engine := conversation.NewEngine(conversation.Deps{
		Ledger:   ledger,
		Codes:    codes,
		Bans:     bans,
		Settings: settings,
		Auth:     auth,
		Orders: panel.New(panel.Config{
			URL:       a.cfg.Panel.URL,
			APIKey:    a.cfg.Panel.APIKey,
			ServiceID: a.cfg.Panel.ServiceID,
			Timeout:   a.cfg.Panel.Timeout,
		}, a.logger),
		Gate:        handler.NewMembershipGate(bot, settings, a.logger),
		Messenger:   messenger,
		States:      a.states,
		Metrics:     a.metrics,
		Logger:      a.logger,
		BotUsername: bot.Me.Username,
	})

	admin := service.NewAdminService(service.AdminDeps{
		Auth:                 auth,
		Ledger:               ledger,
		Codes:                codes,
		Bans:                 bans,
		Settings:             settings,
		Stats:                stats,
		Messenger:            messenger,
		Metrics:              a.metrics,
		Logger:               a.logger,
		BroadcastConcurrency: a.cfg.Broadcast.Concurrency,
	})

	updatesCtx, cancel := context.WithCancel(context.Background())
	a.cancelUpdates = cancel

	a.handler = handler.NewHandler(updatesCtx, bot, engine, admin, a.logger)
	a.handler.RegisterHandlers()

	a.ledger = ledger
	a.stats = stats

	a.logger.Info("Handlers registered")
	return nil
}

// Run serves until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	if a.metricsServer != nil {
		go func() {
			a.logger.Info("Metrics endpoint listening", zap.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	go runStatsJob(ctx, a.stats, a.logger)

	go func() {
		a.logger.Info("Bot started successfully")
		a.bot.Start()
	}()

	<-ctx.Done()

	a.logger.Info("Shutdown signal received, stopping bot...")

	a.bot.Stop()

	if !a.handler.Wait(drainTimeout) {
		a.logger.Warn("In-flight updates still running after drain timeout", zap.Duration("timeout", drainTimeout))
	}
	a.cancelUpdates()

	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	if err := a.ledger.Persist(); err != nil {
		a.logger.Error("Final ledger snapshot failed", zap.Error(err))
	}

	a.logger.Info("Bot stopped gracefully")
	return nil
}

// Stop releases connections
func (a *Application) Stop() {
	if a.cancelUpdates != nil {
		a.cancelUpdates()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// runStatsJob keeps the totals gauges current
func runStatsJob(ctx context.Context, stats *service.StatsService, logger *zap.Logger) {
	stats.RefreshGauges()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stats job stopped")
			return
		case <-ticker.C:
			stats.RefreshGauges()
		}
	}
}

// NewServeCommand creates the command running the bot
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot with long polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := NewApplication()
			defer app.Stop()

			if err := app.Init(ctx); err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

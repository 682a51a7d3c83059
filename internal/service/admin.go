package service

import (
	"context"
	"strings"
	"sync/atomic"

	"viewbot/internal/domain"
	"viewbot/internal/metrics"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Messenger delivers text to a user id or a channel handle
type Messenger interface {
	SendText(to, text string) error
}

// BroadcastResult counts per-recipient delivery outcomes
type BroadcastResult struct {
	Sent   int
	Failed int
}

// AdminService wires the privileged operations. Callers obtain an
// AdminSession through Session, which performs the capability check.
type AdminService struct {
	auth      *AuthService
	ledger    *LedgerService
	codes     *CodeService
	bans      *BanService
	settings  *SettingsService
	stats     *StatsService
	messenger Messenger
	metrics   *metrics.Metrics
	logger    *zap.Logger

	broadcastConcurrency int
}

// AdminDeps groups AdminService collaborators
type AdminDeps struct {
	Auth      *AuthService
	Ledger    *LedgerService
	Codes     *CodeService
	Bans      *BanService
	Settings  *SettingsService
	Stats     *StatsService
	Messenger Messenger
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	BroadcastConcurrency int
}

// NewAdminService creates a new admin service
func NewAdminService(deps AdminDeps) *AdminService {
	concurrency := deps.BroadcastConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &AdminService{
		auth:                 deps.Auth,
		ledger:               deps.Ledger,
		codes:                deps.Codes,
		bans:                 deps.Bans,
		settings:             deps.Settings,
		stats:                deps.Stats,
		messenger:            deps.Messenger,
		metrics:              deps.Metrics,
		logger:               deps.Logger,
		broadcastConcurrency: concurrency,
	}
}

// AdminSession is proof that its holder passed the admin check for the
// current request
type AdminSession struct {
	svc    *AdminService
	userID string
}

// Session authorizes userID, returning domain.ErrNotAdmin or
// domain.ErrBanned when access is denied
func (s *AdminService) Session(userID string) (*AdminSession, error) {
	if err := s.auth.Authorize(userID); err != nil {
		return nil, err
	}
	return &AdminSession{svc: s, userID: userID}, nil
}

// UserID is the admin this session belongs to
func (a *AdminSession) UserID() string {
	return a.userID
}

// GenerateCode issues a new redemption code
func (a *AdminSession) GenerateCode(value int) (string, error) {
	code, err := a.svc.codes.Generate(value)
	if err != nil {
		return "", err
	}
	a.svc.logger.Info("Admin generated code",
		zap.String("admin_id", a.userID),
		zap.String("code", code),
		zap.Int("value", value),
	)
	return code, nil
}

// Ban blocks a user
func (a *AdminSession) Ban(userID string) error {
	return a.svc.bans.Ban(userID)
}

// Unban lifts a ban
func (a *AdminSession) Unban(userID string) error {
	return a.svc.bans.Unban(userID)
}

// SetPayoutChannel changes the withdrawal announcement destination
func (a *AdminSession) SetPayoutChannel(channel string) error {
	return a.svc.settings.SetPayoutChannel(channel)
}

// AddChannel adds an eligibility channel
func (a *AdminSession) AddChannel(channel string) (bool, error) {
	return a.svc.settings.AddChannel(channel)
}

// RemoveChannel removes an eligibility channel
func (a *AdminSession) RemoveChannel(channel string) (bool, error) {
	return a.svc.settings.RemoveChannel(channel)
}

// Channels lists the eligibility channels
func (a *AdminSession) Channels() []string {
	return a.svc.settings.Channels()
}

// Stats returns ledger totals
func (a *AdminSession) Stats() domain.Stats {
	return a.svc.stats.Snapshot()
}

// Broadcast sends text to every known user with bounded concurrency. A
// failed delivery is counted and never stops the others. If ctx is
// cancelled, recipients not yet scheduled are skipped.
func (a *AdminSession) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	if strings.TrimSpace(text) == "" {
		return BroadcastResult{}, domain.NewValidationError("message", "must not be empty")
	}

	recipients := a.svc.ledger.UserIDs()

	var sent, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(a.svc.broadcastConcurrency)

	for _, id := range recipients {
		if ctx.Err() != nil {
			break
		}
		id := id
		p.Go(func() {
			if err := a.svc.messenger.SendText(id, text); err != nil {
				failed.Add(1)
				a.svc.metrics.Deliveries.WithLabelValues("failed").Inc()
				a.svc.logger.Debug("Broadcast delivery failed",
					zap.String("user_id", id),
					zap.Error(err),
				)
				return
			}
			sent.Add(1)
			a.svc.metrics.Deliveries.WithLabelValues("sent").Inc()
		})
	}
	p.Wait()

	result := BroadcastResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
	a.svc.logger.Info("Broadcast finished",
		zap.String("admin_id", a.userID),
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)

	return result, ctx.Err()
}

package service

import (
	"viewbot/internal/domain"
	"viewbot/internal/metrics"

	"go.uber.org/zap"
)

// LedgerTotals aggregates balances over all accounts
type LedgerTotals interface {
	Totals() (users int, balance int)
}

// BanCounter counts banned users
type BanCounter interface {
	Count() int
}

// StatsService handles statistics
type StatsService struct {
	ledger  LedgerTotals
	bans    BanCounter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(ledger LedgerTotals, bans BanCounter, m *metrics.Metrics, logger *zap.Logger) *StatsService {
	return &StatsService{
		ledger:  ledger,
		bans:    bans,
		metrics: m,
		logger:  logger,
	}
}

// Snapshot returns totals as of now. Concurrent mutations may or may not
// be included.
func (s *StatsService) Snapshot() domain.Stats {
	users, balance := s.ledger.Totals()
	return domain.Stats{
		TotalUsers:   users,
		TotalBanned:  s.bans.Count(),
		TotalBalance: balance,
	}
}

// RefreshGauges publishes the current totals to the metrics gauges
func (s *StatsService) RefreshGauges() domain.Stats {
	stats := s.Snapshot()

	s.metrics.TotalUsers.Set(float64(stats.TotalUsers))
	s.metrics.TotalBanned.Set(float64(stats.TotalBanned))
	s.metrics.TotalBalance.Set(float64(stats.TotalBalance))

	s.logger.Debug("Stats gauges refreshed",
		zap.Int("users", stats.TotalUsers),
		zap.Int("banned", stats.TotalBanned),
		zap.Int("balance", stats.TotalBalance),
	)
	return stats
}

package service

import (
	"strings"
	"sync"

	"viewbot/internal/domain"
	"viewbot/internal/repository"

	"go.uber.org/zap"
)

// SettingsService holds the configuration values admins can change at
// runtime. The configured values only seed the record on first start.
type SettingsService struct {
	store  repository.SnapshotStore
	logger *zap.Logger

	mu       sync.RWMutex
	settings domain.Settings
}

// NewSettingsService loads the settings record, falling back to defaults
func NewSettingsService(store repository.SnapshotStore, defaults domain.Settings, logger *zap.Logger) (*SettingsService, error) {
	settings, found, err := loadRecord[domain.Settings](store, repository.RecordSettings, logger)
	if err != nil {
		return nil, err
	}
	if !found {
		settings = defaults
	}
	settings.EligibilityChannels = append([]string{}, settings.EligibilityChannels...)

	return &SettingsService{store: store, logger: logger, settings: settings}, nil
}

// update applies fn to a copy and persists it before publishing
func (s *SettingsService) update(fn func(st *domain.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	next.EligibilityChannels = append([]string{}, s.settings.EligibilityChannels...)
	fn(&next)

	if err := saveRecord(s.store, repository.RecordSettings, next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// PayoutChannel returns where accepted withdrawals are announced
func (s *SettingsService) PayoutChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.PayoutChannel
}

// SetPayoutChannel changes the announcement destination
func (s *SettingsService) SetPayoutChannel(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return domain.NewValidationError("channel", "must not be empty")
	}

	if err := s.update(func(st *domain.Settings) { st.PayoutChannel = channel }); err != nil {
		return err
	}
	s.logger.Info("Payout channel changed", zap.String("channel", channel))
	return nil
}

// Channels returns the channels a user must join to be eligible
func (s *SettingsService) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.settings.EligibilityChannels...)
}

func validateChannel(channel string) error {
	if !strings.HasPrefix(channel, "@") || len(channel) < 2 {
		return domain.NewValidationError("channel", "must look like @channelusername")
	}
	return nil
}

// AddChannel appends a channel to the eligibility list. It reports false
// if the channel was already listed.
func (s *SettingsService) AddChannel(channel string) (bool, error) {
	channel = strings.TrimSpace(channel)
	if err := validateChannel(channel); err != nil {
		return false, err
	}

	for _, ch := range s.Channels() {
		if ch == channel {
			return false, nil
		}
	}

	added := false
	err := s.update(func(st *domain.Settings) {
		for _, ch := range st.EligibilityChannels {
			if ch == channel {
				return
			}
		}
		st.EligibilityChannels = append(st.EligibilityChannels, channel)
		added = true
	})
	return added, err
}

// RemoveChannel drops a channel from the eligibility list. It reports
// false if the channel was not listed.
func (s *SettingsService) RemoveChannel(channel string) (bool, error) {
	channel = strings.TrimSpace(channel)
	if err := validateChannel(channel); err != nil {
		return false, err
	}

	listed := false
	for _, ch := range s.Channels() {
		listed = listed || ch == channel
	}
	if !listed {
		return false, nil
	}

	removed := false
	err := s.update(func(st *domain.Settings) {
		kept := st.EligibilityChannels[:0]
		for _, ch := range st.EligibilityChannels {
			if ch == channel {
				removed = true
				continue
			}
			kept = append(kept, ch)
		}
		st.EligibilityChannels = kept
	})
	return removed, err
}

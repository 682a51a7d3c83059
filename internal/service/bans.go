package service

import (
	"sort"
	"strings"
	"sync"

	"viewbot/internal/domain"
	"viewbot/internal/repository"

	"go.uber.org/zap"
)

// BanService is the set of blocked user ids
type BanService struct {
	store  repository.SnapshotStore
	logger *zap.Logger

	mu     sync.RWMutex
	banned map[string]struct{}
}

// NewBanService loads the banned record from store
func NewBanService(store repository.SnapshotStore, logger *zap.Logger) (*BanService, error) {
	ids, _, err := loadRecord[[]string](store, repository.RecordBanned, logger)
	if err != nil {
		return nil, err
	}

	banned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		banned[id] = struct{}{}
	}

	return &BanService{store: store, logger: logger, banned: banned}, nil
}

// persist must be called with mu held for writing
func (s *BanService) persist() error {
	ids := make([]string, 0, len(s.banned))
	for id := range s.banned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return saveRecord(s.store, repository.RecordBanned, ids)
}

// IsBanned reports whether userID is blocked
func (s *BanService) IsBanned(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[userID]
	return ok
}

// Ban blocks userID; banning twice is a no-op
func (s *BanService) Ban(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.NewValidationError("user id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banned[userID]; ok {
		return nil
	}

	s.banned[userID] = struct{}{}
	if err := s.persist(); err != nil {
		delete(s.banned, userID)
		return err
	}

	s.logger.Info("User banned", zap.String("user_id", userID))
	return nil
}

// Unban lifts a ban; unbanning an unknown id is a no-op
func (s *BanService) Unban(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.NewValidationError("user id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banned[userID]; !ok {
		return nil
	}

	delete(s.banned, userID)
	if err := s.persist(); err != nil {
		s.banned[userID] = struct{}{}
		return err
	}

	s.logger.Info("User unbanned", zap.String("user_id", userID))
	return nil
}

// Count returns the number of banned ids
func (s *BanService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.banned)
}

package memory

import (
	"context"
	"sync"

	"viewbot/internal/domain"
)

// StateStore keeps dialog state in process memory; it is lost on restart
type StateStore struct {
	mu     sync.RWMutex
	states map[string]domain.Dialog
}

// NewStateStore creates an empty in-memory state store
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]domain.Dialog)}
}

// Get returns the user's dialog, nil if idle
func (s *StateStore) Get(_ context.Context, userID string) (domain.Dialog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID], nil
}

// Set replaces the user's dialog
func (s *StateStore) Set(_ context.Context, userID string, dialog domain.Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dialog == nil {
		delete(s.states, userID)
		return nil
	}
	s.states[userID] = dialog
	return nil
}

// Clear resets the user to idle
func (s *StateStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

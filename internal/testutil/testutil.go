package testutil

import (
	"errors"
	"sort"
	"sync"

	"viewbot/internal/repository"

	"go.uber.org/zap"
)

// NewTestLogger creates a no-op logger for tests
func NewTestLogger() *zap.Logger {
	return zap.NewNop()
}

// ErrInjected is returned by fakes configured to fail
var ErrInjected = errors.New("injected failure")

// MemoryStore is an in-memory SnapshotStore whose writes can be made to
// fail per record
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string][]byte
	failSave map[string]bool
	saves    map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string][]byte),
		failSave: make(map[string]bool),
		saves:    make(map[string]int),
	}
}

func (s *MemoryStore) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.records[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte{}, data...), nil
}

func (s *MemoryStore) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave[name] {
		return ErrInjected
	}
	s.records[name] = append([]byte{}, data...)
	s.saves[name]++
	return nil
}

// Put seeds a record without counting it as a save
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = append([]byte{}, data...)
}

// FailSaves makes every later Save of name fail until toggled back
func (s *MemoryStore) FailSaves(name string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave[name] = fail
}

// Saves returns how many successful writes name received
func (s *MemoryStore) Saves(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[name]
}

// SentMessage is one delivery recorded by RecordingMessenger
type SentMessage struct {
	To   string
	Text string
}

// RecordingMessenger records every message and fails deliveries to the
// recipients listed in Fail
type RecordingMessenger struct {
	mu   sync.Mutex
	sent []SentMessage
	fail map[string]bool
}

// NewRecordingMessenger creates a messenger that fails for the given ids
func NewRecordingMessenger(failFor ...string) *RecordingMessenger {
	fail := make(map[string]bool, len(failFor))
	for _, id := range failFor {
		fail[id] = true
	}
	return &RecordingMessenger{fail: fail}
}

func (m *RecordingMessenger) SendText(to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail[to] {
		return ErrInjected
	}
	m.sent = append(m.sent, SentMessage{To: to, Text: text})
	return nil
}

// To returns the texts delivered to a recipient, oldest first
func (m *RecordingMessenger) To(recipient string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var texts []string
	for _, msg := range m.sent {
		if msg.To == recipient {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

// Last returns the latest text delivered to a recipient
func (m *RecordingMessenger) Last(recipient string) string {
	texts := m.To(recipient)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Recipients returns the distinct recipients, sorted
func (m *RecordingMessenger) Recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, msg := range m.sent {
		if !seen[msg.To] {
			seen[msg.To] = true
			ids = append(ids, msg.To)
		}
	}
	sort.Strings(ids)
	return ids
}

// StaticGate admits everyone unless a user is listed in Blocked
type StaticGate struct {
	Blocked map[string]bool
	Prompt  string
}

func (g *StaticGate) IsEligible(userID string) bool {
	return !g.Blocked[userID]
}

func (g *StaticGate) JoinPrompt() string {
	if g.Prompt == "" {
		return "join the channels first"
	}
	return g.Prompt
}

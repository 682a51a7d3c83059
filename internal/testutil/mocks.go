package testutil

import (
	"context"

	"viewbot/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockSnapshotStore is a mock for SnapshotStore
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Load(name string) ([]byte, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSnapshotStore) Save(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}

// MockAdminRegistry is a mock for AdminRegistry
type MockAdminRegistry struct {
	mock.Mock
}

func (m *MockAdminRegistry) IsAdmin(userID string) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

func (m *MockAdminRegistry) SetAdmin(userID string, isAdmin bool) error {
	args := m.Called(userID, isAdmin)
	return args.Error(0)
}

// MockBanChecker is a mock for BanChecker
type MockBanChecker struct {
	mock.Mock
}

func (m *MockBanChecker) IsBanned(userID string) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

// MockLedgerTotals is a mock for LedgerTotals
type MockLedgerTotals struct {
	mock.Mock
}

func (m *MockLedgerTotals) Totals() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

// MockBanCounter is a mock for BanCounter
type MockBanCounter struct {
	mock.Mock
}

func (m *MockBanCounter) Count() int {
	args := m.Called()
	return args.Int(0)
}

// MockOrderPlacer is a mock for OrderPlacer
type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(ctx context.Context, link string, quantity int) domain.OrderResult {
	args := m.Called(ctx, link, quantity)
	return args.Get(0).(domain.OrderResult)
}

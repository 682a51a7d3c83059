package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"testing"

	"viewbot/internal/domain"
	"viewbot/internal/repository"
	"viewbot/internal/repository/file"
	"viewbot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*LedgerService, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	ledger, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)
	return ledger, store
}

func TestLedger_GetAccountCreatesOnce(t *testing.T) {
	ledger, store := newTestLedger(t)

	acc, err := ledger.GetAccount("U1")
	require.NoError(t, err)
	assert.Equal(t, domain.SignupBonus, acc.Balance)

	again, err := ledger.GetAccount("U1")
	require.NoError(t, err)
	assert.Equal(t, acc, again)
	assert.Equal(t, 1, store.Saves(repository.RecordUsers))
}

func TestLedger_GetAccountEmptyID(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.GetAccount("")

	assert.True(t, domain.IsValidation(err))
}

func TestLedger_AccountDoesNotCreate(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, ok := ledger.Account("U1")

	assert.False(t, ok)
	assert.Empty(t, ledger.UserIDs())
}

func TestLedger_ReturnedAccountIsACopy(t *testing.T) {
	ledger, _ := newTestLedger(t)
	acc, err := ledger.GetAccount("U1")
	require.NoError(t, err)

	acc.Balance = 1_000_000
	acc.History = append(acc.History, domain.RedeemTx(1, "X"))

	stored, _ := ledger.Account("U1")
	assert.Equal(t, domain.SignupBonus, stored.Balance)
	assert.Empty(t, stored.History)
}

func TestLedger_Open(t *testing.T) {
	tests := []struct {
		name             string
		referrer         string
		expectReferredBy bool
	}{
		{name: "no referrer", referrer: ""},
		{name: "known referrer", referrer: "R", expectReferredBy: true},
		{name: "unknown referrer", referrer: "nobody"},
		{name: "self referral", referrer: "U1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _ := newTestLedger(t)
			_, err := ledger.GetAccount("R")
			require.NoError(t, err)

			acc, created, err := ledger.Open("U1", tt.referrer)
			require.NoError(t, err)
			assert.True(t, created)

			referrer, _ := ledger.Account("R")
			if tt.expectReferredBy {
				require.NotNil(t, acc.ReferredBy)
				assert.Equal(t, "R", *acc.ReferredBy)
				assert.Equal(t, domain.SignupBonus+domain.ReferralBonus, referrer.Balance)
				assert.Equal(t, []string{"U1"}, referrer.Referrals)
			} else {
				assert.Nil(t, acc.ReferredBy)
				assert.Equal(t, domain.SignupBonus, referrer.Balance)
				assert.Empty(t, referrer.Referrals)
			}
		})
	}
}

func TestLedger_OpenIsIdempotentUnderConcurrency(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.GetAccount("R")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := ledger.Open("U1", "R")
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	referrer, _ := ledger.Account("R")
	assert.Equal(t, 1, created)
	assert.Equal(t, domain.SignupBonus+domain.ReferralBonus, referrer.Balance)
	assert.Equal(t, []string{"U1"}, referrer.Referrals)
}

func TestLedger_CreditDebit(t *testing.T) {
	tests := []struct {
		name          string
		op            func(l *LedgerService) (*domain.Account, error)
		expectBalance int
		expectErr     error
		expectInvalid bool
	}{
		{
			name:          "credit",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Credit("U1", 100) },
			expectBalance: 600,
		},
		{
			name:          "debit",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Debit("U1", 100) },
			expectBalance: 400,
		},
		{
			name:          "debit whole balance",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Debit("U1", 500) },
			expectBalance: 0,
		},
		{
			name:          "overdraft",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Debit("U1", 501) },
			expectBalance: 500,
			expectErr:     domain.ErrInsufficientBalance,
		},
		{
			name:          "zero credit",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Credit("U1", 0) },
			expectBalance: 500,
			expectInvalid: true,
		},
		{
			name:          "negative debit",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Debit("U1", -5) },
			expectBalance: 500,
			expectInvalid: true,
		},
		{
			name:          "unknown account",
			op:            func(l *LedgerService) (*domain.Account, error) { return l.Credit("ghost", 5) },
			expectBalance: 500,
			expectErr:     domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _ := newTestLedger(t)
			_, err := ledger.GetAccount("U1")
			require.NoError(t, err)

			acc, err := tt.op(ledger)

			switch {
			case tt.expectErr != nil:
				assert.ErrorIs(t, err, tt.expectErr)
			case tt.expectInvalid:
				assert.True(t, domain.IsValidation(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectBalance, acc.Balance)
			}

			stored, _ := ledger.Account("U1")
			assert.Equal(t, tt.expectBalance, stored.Balance)
		})
	}
}

func TestLedger_ApplyTransaction(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.GetAccount("U1")
	require.NoError(t, err)

	_, err = ledger.ApplyTransaction("U1", domain.RedeemTx(300, "ABCD1234"))
	require.NoError(t, err)
	acc, err := ledger.ApplyTransaction("U1", domain.WithdrawTx(100, "L"))
	require.NoError(t, err)

	assert.Equal(t, 700, acc.Balance)
	assert.Equal(t, []domain.Transaction{
		{Kind: domain.TxRedeem, Amount: 300, Code: "ABCD1234"},
		{Kind: domain.TxWithdraw, Amount: 100, Link: "L"},
	}, acc.History)

	_, err = ledger.ApplyTransaction("U1", domain.WithdrawTx(701, "L"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = ledger.ApplyTransaction("U1", domain.Transaction{Kind: "gift", Amount: 1})
	assert.True(t, domain.IsValidation(err))

	stored, _ := ledger.Account("U1")
	assert.Len(t, stored.History, 2)
}

func TestLedger_AppendHistoryAndAdmin(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.GetAccount("U1")
	require.NoError(t, err)

	require.NoError(t, ledger.AppendHistory("U1", domain.WithdrawTx(10, "L")))
	require.NoError(t, ledger.SetAdmin("U1", true))

	acc, _ := ledger.Account("U1")
	assert.Equal(t, domain.SignupBonus, acc.Balance)
	assert.Len(t, acc.History, 1)
	assert.True(t, ledger.IsAdmin("U1"))
	assert.False(t, ledger.IsAdmin("ghost"))

	assert.ErrorIs(t, ledger.SetAdmin("ghost", true), domain.ErrAccountNotFound)
}

func TestLedger_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ledger, store := newTestLedger(t)
	_, err := ledger.GetAccount("U1")
	require.NoError(t, err)

	store.FailSaves(repository.RecordUsers, true)

	_, err = ledger.Credit("U1", 100)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, _, err = ledger.Open("U2", "U1")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	acc, _ := ledger.Account("U1")
	assert.Equal(t, domain.SignupBonus, acc.Balance)
	assert.Empty(t, acc.Referrals)
	_, exists := ledger.Account("U2")
	assert.False(t, exists)
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.GetAccount("U1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Debit("U1", 100); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	acc, _ := ledger.Account("U1")
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, acc.Balance)
}

func TestLedger_UserIDsAndTotals(t *testing.T) {
	ledger, _ := newTestLedger(t)
	for _, id := range []string{"c", "a", "b"} {
		_, err := ledger.GetAccount(id)
		require.NoError(t, err)
	}
	_, err := ledger.Debit("b", 200)
	require.NoError(t, err)

	users, balance := ledger.Totals()

	assert.Equal(t, []string{"a", "b", "c"}, ledger.UserIDs())
	assert.Equal(t, 3, users)
	assert.Equal(t, 1300, balance)
}

func TestLedger_ReloadFromFileStore(t *testing.T) {
	store, err := file.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	ledger, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)
	_, _, err = ledger.Open("R", "")
	require.NoError(t, err)
	_, _, err = ledger.Open("U1", "R")
	require.NoError(t, err)
	_, err = ledger.ApplyTransaction("U1", domain.WithdrawTx(100, "L"))
	require.NoError(t, err)
	require.NoError(t, ledger.SetAdmin("R", true))

	reloaded, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)

	for _, id := range []string{"R", "U1"} {
		want, _ := ledger.Account(id)
		got, ok := reloaded.Account(id)
		require.True(t, ok, id)
		assert.Equal(t, want, got, id)
	}
}

func TestLedger_LegacyRecordLayout(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Put(repository.RecordUsers, []byte(`{
		"111": {"balance": 750, "refs": ["222"], "is_admin": true,
		        "history": [{"type": "withdraw", "amount": 100, "link": "https://t.me/c/1"}]},
		"222": {"balance": 500, "refs": [], "referred_by": "111"}
	}`))

	ledger, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)

	acc, ok := ledger.Account("111")
	require.True(t, ok)
	assert.Equal(t, "111", acc.UserID)
	assert.Equal(t, 750, acc.Balance)
	assert.True(t, acc.IsAdmin)
	assert.Equal(t, []domain.Transaction{{Kind: domain.TxWithdraw, Amount: 100, Link: "https://t.me/c/1"}}, acc.History)

	second, ok := ledger.Account("222")
	require.True(t, ok)
	require.NotNil(t, second.ReferredBy)
	assert.Equal(t, "111", *second.ReferredBy)
	assert.NotNil(t, second.History)
}

func newLedgerWithBalance(t *testing.T, userID string, balance int) (*LedgerService, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	store.Put(repository.RecordUsers, []byte(fmt.Sprintf(`{"%s": {"balance": %s}}`, userID, strconv.Itoa(balance))))
	ledger, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)
	return ledger, store
}

func TestLedger_CreditNeverOverflows(t *testing.T) {
	tests := []struct {
		name    string
		balance int
		amount  int
		wantErr bool
	}{
		{name: "up to the limit", balance: math.MaxInt - 100, amount: 100},
		{name: "one past the limit", balance: math.MaxInt - 100, amount: 101, wantErr: true},
		{name: "huge credit on signup balance", balance: domain.SignupBonus, amount: math.MaxInt, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, store := newLedgerWithBalance(t, "U1", tt.balance)

			acc, err := ledger.ApplyTransaction("U1", domain.RedeemTx(tt.amount, "ABCD1234"))

			stored, _ := ledger.Account("U1")
			if tt.wantErr {
				assert.True(t, domain.IsValidation(err))
				assert.Equal(t, tt.balance, stored.Balance)
				assert.Empty(t, stored.History)
				assert.Equal(t, 0, store.Saves(repository.RecordUsers))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, math.MaxInt, acc.Balance)
			assert.GreaterOrEqual(t, stored.Balance, 0)
		})
	}

	t.Run("plain credit", func(t *testing.T) {
		ledger, _ := newLedgerWithBalance(t, "U1", math.MaxInt)

		_, err := ledger.Credit("U1", 1)

		assert.True(t, domain.IsValidation(err))
		stored, _ := ledger.Account("U1")
		assert.Equal(t, math.MaxInt, stored.Balance)
	})
}

func TestLedger_ReferralSkippedWhenReferrerIsFull(t *testing.T) {
	ledger, _ := newLedgerWithBalance(t, "R", math.MaxInt-1)

	acc, created, err := ledger.Open("U1", "R")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, acc.ReferredBy)

	referrer, _ := ledger.Account("R")
	assert.Equal(t, math.MaxInt-1, referrer.Balance)
	assert.Empty(t, referrer.Referrals)
}

func TestLedger_LoadRecords(t *testing.T) {
	tests := []struct {
		name          string
		loadData      []byte
		loadErr       error
		expectErr     bool
		expectedUsers int
	}{
		{
			name:    "missing record",
			loadErr: repository.ErrNotFound,
		},
		{
			name:     "corrupt record",
			loadData: []byte(`{not json`),
		},
		{
			name:          "valid record",
			loadData:      []byte(`{"1": {"balance": 5}}`),
			expectedUsers: 1,
		},
		{
			name:      "store failure",
			loadErr:   errors.New("connection reset"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(testutil.MockSnapshotStore)
			if tt.loadData != nil {
				store.On("Load", repository.RecordUsers).Return(tt.loadData, nil)
			} else {
				store.On("Load", repository.RecordUsers).Return(nil, tt.loadErr)
			}

			ledger, err := NewLedgerService(store, testutil.NewTestLogger())

			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			users, _ := ledger.Totals()
			assert.Equal(t, tt.expectedUsers, users)
			store.AssertExpectations(t)
		})
	}
}

func TestLedger_PersistWritesSnapshot(t *testing.T) {
	store := new(testutil.MockSnapshotStore)
	store.On("Load", repository.RecordUsers).Return(nil, repository.ErrNotFound)
	store.On("Save", repository.RecordUsers, mock.MatchedBy(func(data []byte) bool {
		return len(data) > 0
	})).Return(nil).Times(2)

	ledger, err := NewLedgerService(store, testutil.NewTestLogger())
	require.NoError(t, err)
	_, err = ledger.GetAccount("U1")
	require.NoError(t, err)

	require.NoError(t, ledger.Persist())
	store.AssertExpectations(t)
}

func BenchmarkLedger_Credit(b *testing.B) {
	ledger, err := NewLedgerService(testutil.NewMemoryStore(), testutil.NewTestLogger())
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if _, err := ledger.GetAccount(fmt.Sprint(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ledger.Credit(fmt.Sprint(i%100), 1); err != nil {
			b.Fatal(err)
		}
	}
}

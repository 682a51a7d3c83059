package service

import (
	"math"
	"sort"
	"sync"

	"viewbot/internal/domain"
	"viewbot/internal/repository"

	"go.uber.org/zap"
)

// LedgerService owns all accounts. Stored accounts are never mutated in
// place: every change builds a copy, persists the full snapshot with the
// copy in it, and only then swaps the copy in.
type LedgerService struct {
	store  repository.SnapshotStore
	logger *zap.Logger
	locks  *UserLocks

	mu       sync.RWMutex
	accounts map[string]*domain.Account

	// serializes snapshot writes so they never interleave
	persistMu sync.Mutex
}

// NewLedgerService loads the users record from store
func NewLedgerService(store repository.SnapshotStore, logger *zap.Logger) (*LedgerService, error) {
	accounts, _, err := loadRecord[map[string]*domain.Account](store, repository.RecordUsers, logger)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = make(map[string]*domain.Account)
	}

	for id, acc := range accounts {
		if acc == nil {
			delete(accounts, id)
			continue
		}
		acc.UserID = id
		if acc.Referrals == nil {
			acc.Referrals = []string{}
		}
		if acc.History == nil {
			acc.History = []domain.Transaction{}
		}
	}

	logger.Info("Ledger loaded", zap.Int("accounts", len(accounts)))

	return &LedgerService{
		store:    store,
		logger:   logger,
		locks:    NewUserLocks(),
		accounts: accounts,
	}, nil
}

func (s *LedgerService) lookup(userID string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	return acc, ok
}

// commit persists a snapshot that includes updated and, if the write
// succeeds, publishes updated to readers
func (s *LedgerService) commit(updated ...*domain.Account) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[string]*domain.Account, len(s.accounts)+len(updated))
	for id, acc := range s.accounts {
		snapshot[id] = acc
	}
	s.mu.RUnlock()

	for _, acc := range updated {
		snapshot[acc.UserID] = acc
	}

	if err := saveRecord(s.store, repository.RecordUsers, snapshot); err != nil {
		s.logger.Error("Failed to persist ledger", zap.Error(err))
		return err
	}

	s.mu.Lock()
	for _, acc := range updated {
		s.accounts[acc.UserID] = acc
	}
	s.mu.Unlock()

	return nil
}

// Persist writes the full ledger snapshot
func (s *LedgerService) Persist() error {
	return s.commit()
}

// Account returns a copy of an existing account without creating one
func (s *LedgerService) Account(userID string) (*domain.Account, bool) {
	acc, ok := s.lookup(userID)
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// GetAccount returns the user's account, creating it with the signup bonus
// on first contact
func (s *LedgerService) GetAccount(userID string) (*domain.Account, error) {
	acc, _, err := s.Open(userID, "")
	return acc, err
}

// Open returns the user's account and whether it was created by this call.
// A new account is credited the signup bonus and, when referrerID names
// another existing account, pays that account the referral bonus. Account,
// bonus and referral land in one snapshot write.
func (s *LedgerService) Open(userID, referrerID string) (*domain.Account, bool, error) {
	if userID == "" {
		return nil, false, domain.NewValidationError("user id", "must not be empty")
	}

	if acc, ok := s.lookup(userID); ok {
		return acc.Clone(), false, nil
	}

	unlock := s.locks.Lock(userID, referrerID)
	defer unlock()

	// another event may have created it while we waited
	if acc, ok := s.lookup(userID); ok {
		return acc.Clone(), false, nil
	}

	acc := domain.NewAccount(userID)
	updated := []*domain.Account{acc}

	if referrer := s.ApplyReferral(acc, referrerID); referrer != nil {
		updated = append(updated, referrer)
	}

	if err := s.commit(updated...); err != nil {
		return nil, false, err
	}

	s.logger.Info("Account created",
		zap.String("user_id", userID),
		zap.Bool("referred", acc.ReferredBy != nil),
	)

	return acc.Clone(), true, nil
}

// ApplyReferral links a not-yet-committed account to its referrer. It
// returns the updated referrer copy, or nil when the referral does not
// qualify: empty, self-referral, or unknown referrer. Callers must hold
// the locks of both users.
func (s *LedgerService) ApplyReferral(newAcc *domain.Account, referrerID string) *domain.Account {
	if referrerID == "" || referrerID == newAcc.UserID || newAcc.ReferredBy != nil {
		return nil
	}

	current, ok := s.lookup(referrerID)
	if !ok {
		return nil
	}

	referrer := current.Clone()
	if err := credit(referrer, domain.ReferralBonus); err != nil {
		s.logger.Warn("Referral bonus skipped",
			zap.String("referrer_id", referrerID),
			zap.Error(err),
		)
		return nil
	}
	referrer.Referrals = append(referrer.Referrals, newAcc.UserID)

	ref := referrerID
	newAcc.ReferredBy = &ref

	return referrer
}

// update runs fn on a copy of an existing account under its lock and
// commits the copy if fn succeeds
func (s *LedgerService) update(userID string, fn func(acc *domain.Account) error) (*domain.Account, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	current, ok := s.lookup(userID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	acc := current.Clone()
	if err := fn(acc); err != nil {
		return nil, err
	}

	if err := s.commit(acc); err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

func validateAmount(amount int) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "must be positive")
	}
	return nil
}

func credit(acc *domain.Account, amount int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > math.MaxInt-acc.Balance {
		return domain.NewValidationError("amount", "balance would overflow")
	}
	acc.Balance += amount
	return nil
}

func debit(acc *domain.Account, amount int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount > acc.Balance {
		return domain.ErrInsufficientBalance
	}
	acc.Balance -= amount
	return nil
}

// Credit adds points to an existing account
func (s *LedgerService) Credit(userID string, amount int) (*domain.Account, error) {
	return s.update(userID, func(acc *domain.Account) error {
		return credit(acc, amount)
	})
}

// Debit removes points, failing with ErrInsufficientBalance rather than
// going negative
func (s *LedgerService) Debit(userID string, amount int) (*domain.Account, error) {
	return s.update(userID, func(acc *domain.Account) error {
		return debit(acc, amount)
	})
}

// AppendHistory records a transaction without touching the balance
func (s *LedgerService) AppendHistory(userID string, tx domain.Transaction) error {
	_, err := s.update(userID, func(acc *domain.Account) error {
		acc.History = append(acc.History, tx)
		return nil
	})
	return err
}

// ApplyTransaction moves the balance according to tx and appends tx to
// the history in a single write: redeem credits, withdraw debits
func (s *LedgerService) ApplyTransaction(userID string, tx domain.Transaction) (*domain.Account, error) {
	return s.update(userID, func(acc *domain.Account) error {
		var err error
		switch tx.Kind {
		case domain.TxRedeem:
			err = credit(acc, tx.Amount)
		case domain.TxWithdraw:
			err = debit(acc, tx.Amount)
		default:
			err = domain.NewValidationError("transaction", "unknown kind "+string(tx.Kind))
		}
		if err != nil {
			return err
		}
		acc.History = append(acc.History, tx)
		return nil
	})
}

// SetAdmin grants or revokes the admin flag
func (s *LedgerService) SetAdmin(userID string, isAdmin bool) error {
	_, err := s.update(userID, func(acc *domain.Account) error {
		acc.IsAdmin = isAdmin
		return nil
	})
	return err
}

// IsAdmin reports whether the account carries the admin flag
func (s *LedgerService) IsAdmin(userID string) bool {
	acc, ok := s.lookup(userID)
	return ok && acc.IsAdmin
}

// UserIDs returns a sorted snapshot of all known user ids
func (s *LedgerService) UserIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Totals returns the number of accounts and the sum of their balances
func (s *LedgerService) Totals() (users int, balance int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		balance += acc.Balance
	}
	return len(s.accounts), balance
}

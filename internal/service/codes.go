package service

import (
	"fmt"
	"strings"
	"sync"

	"viewbot/internal/domain"
	"viewbot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCodeAttempts = 16

// CodeService is the redemption code registry
type CodeService struct {
	store  repository.SnapshotStore
	logger *zap.Logger

	mu    sync.Mutex
	codes map[string]*domain.RedemptionCode

	newCode func() string
}

// NewCodeService loads the codes record from store
func NewCodeService(store repository.SnapshotStore, logger *zap.Logger) (*CodeService, error) {
	codes, _, err := loadRecord[map[string]*domain.RedemptionCode](store, repository.RecordCodes, logger)
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = make(map[string]*domain.RedemptionCode)
	}
	for code, rc := range codes {
		if rc == nil {
			delete(codes, code)
		}
	}

	return &CodeService{
		store:   store,
		logger:  logger,
		codes:   codes,
		newCode: randomCode,
	}, nil
}

// randomCode takes the first characters of a random UUID's hex form
func randomCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:domain.CodeLength])
}

// persist must be called with mu held
func (s *CodeService) persist() error {
	return saveRecord(s.store, repository.RecordCodes, s.codes)
}

// Generate creates a new unused code worth value points
func (s *CodeService) Generate(value int) (string, error) {
	if value <= 0 {
		return "", domain.NewValidationError("value", "must be positive")
	}
	if value > domain.MaxCodeValue {
		return "", domain.NewValidationError("value", fmt.Sprintf("must not exceed %d", domain.MaxCodeValue))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := domain.NormalizeCode(s.newCode())
		if _, exists := s.codes[code]; exists || code == "" {
			continue
		}

		s.codes[code] = &domain.RedemptionCode{Value: value}
		if err := s.persist(); err != nil {
			delete(s.codes, code)
			return "", err
		}

		s.logger.Info("Redemption code generated", zap.String("code", code), zap.Int("value", value))
		return code, nil
	}

	return "", fmt.Errorf("could not generate a unique code after %d attempts", maxCodeAttempts)
}

// Redeem claims code for userID and returns its value. Exactly one caller
// can claim a code; the claim is durable before Redeem returns.
func (s *CodeService) Redeem(code, userID string) (int, error) {
	code = domain.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.codes[code]
	if !ok {
		return 0, domain.ErrCodeNotFound
	}
	if rc.Used {
		return 0, domain.ErrCodeAlreadyUsed
	}

	claimed := *rc
	claimed.Used = true
	by := userID
	claimed.UsedBy = &by

	s.codes[code] = &claimed
	if err := s.persist(); err != nil {
		s.codes[code] = rc
		return 0, err
	}

	return claimed.Value, nil
}

// Release undoes a claim made by userID, for when crediting the ledger
// failed after the claim was persisted
func (s *CodeService) Release(code, userID string) error {
	code = domain.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.codes[code]
	if !ok {
		return domain.ErrCodeNotFound
	}
	if !rc.Used || rc.UsedBy == nil || *rc.UsedBy != userID {
		return fmt.Errorf("code %s is not held by %s", code, userID)
	}

	released := &domain.RedemptionCode{Value: rc.Value}
	s.codes[code] = released
	if err := s.persist(); err != nil {
		s.codes[code] = rc
		return err
	}
	return nil
}

// Lookup returns a copy of a code's state
func (s *CodeService) Lookup(code string) (domain.RedemptionCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.codes[domain.NormalizeCode(code)]
	if !ok {
		return domain.RedemptionCode{}, false
	}
	return *rc, true
}

package domain

const (
	// SignupBonus is credited exactly once, when an account is created
	SignupBonus = 500
	// ReferralBonus is credited to the referrer of a newly created account
	ReferralBonus = 250
	// MinWithdrawal is the smallest order the panel accepts
	MinWithdrawal = 10
)

// Account represents a bot user's points account
type Account struct {
	UserID     string        `json:"-"`
	Balance    int           `json:"balance"`
	Referrals  []string      `json:"refs"`
	IsAdmin    bool          `json:"is_admin"`
	History    []Transaction `json:"history"`
	ReferredBy *string       `json:"referred_by"`
}

// NewAccount returns a fresh account holding the signup bonus
func NewAccount(userID string) *Account {
	return &Account{
		UserID:    userID,
		Balance:   SignupBonus,
		Referrals: []string{},
		History:   []Transaction{},
	}
}

// Clone returns a deep copy so callers never share slices with the ledger
func (a *Account) Clone() *Account {
	c := *a
	c.Referrals = append([]string{}, a.Referrals...)
	c.History = append([]Transaction{}, a.History...)
	if a.ReferredBy != nil {
		ref := *a.ReferredBy
		c.ReferredBy = &ref
	}
	return &c
}

// RecentHistory returns at most n latest transactions, oldest first
func (a *Account) RecentHistory(n int) []Transaction {
	if len(a.History) <= n {
		return a.History
	}
	return a.History[len(a.History)-n:]
}

// TxKind is the type of a ledger transaction
type TxKind string

const (
	TxWithdraw TxKind = "withdraw"
	TxRedeem   TxKind = "redeem"
)

// Transaction is an immutable history entry
type Transaction struct {
	Kind   TxKind `json:"type"`
	Amount int    `json:"amount"`
	Link   string `json:"link,omitempty"`
	Code   string `json:"code,omitempty"`
}

// WithdrawTx builds a withdrawal entry for an accepted order
func WithdrawTx(amount int, link string) Transaction {
	return Transaction{Kind: TxWithdraw, Amount: amount, Link: link}
}

// RedeemTx builds a redemption entry
func RedeemTx(amount int, code string) Transaction {
	return Transaction{Kind: TxRedeem, Amount: amount, Code: code}
}

// Stats is a point-in-time aggregate over the ledger
type Stats struct {
	TotalUsers   int
	TotalBanned  int
	TotalBalance int
}

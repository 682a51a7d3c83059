package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAccount(t *testing.T) {
	acc := NewAccount("U1")

	assert.Equal(t, "U1", acc.UserID)
	assert.Equal(t, SignupBonus, acc.Balance)
	assert.Empty(t, acc.History)
	assert.Empty(t, acc.Referrals)
	assert.Nil(t, acc.ReferredBy)
	assert.False(t, acc.IsAdmin)
}

func TestAccount_Clone(t *testing.T) {
	ref := "U2"
	acc := &Account{
		UserID:     "U1",
		Balance:    100,
		Referrals:  []string{"U3"},
		History:    []Transaction{RedeemTx(100, "ABCD1234")},
		ReferredBy: &ref,
	}

	c := acc.Clone()
	c.Referrals[0] = "changed"
	c.History[0].Amount = 1
	*c.ReferredBy = "changed"

	assert.Equal(t, "U3", acc.Referrals[0])
	assert.Equal(t, 100, acc.History[0].Amount)
	assert.Equal(t, "U2", *acc.ReferredBy)
}

func TestAccount_RecentHistory(t *testing.T) {
	acc := NewAccount("U1")
	for i := 1; i <= 12; i++ {
		acc.History = append(acc.History, RedeemTx(i, "C"))
	}

	recent := acc.RecentHistory(10)

	assert.Len(t, recent, 10)
	assert.Equal(t, 3, recent[0].Amount)
	assert.Equal(t, 12, recent[9].Amount)
	assert.Len(t, NewAccount("U2").RecentHistory(10), 0)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABCD1234", NormalizeCode("  abcd1234\n"))
}

func TestOrderResult(t *testing.T) {
	assert.True(t, OrderAccepted("X1").Accepted())
	assert.False(t, OrderRejected("bad link").Accepted())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "must be positive")

	assert.True(t, IsValidation(err))
	assert.False(t, IsValidation(ErrBanned))
	assert.Equal(t, "invalid amount: must be positive", err.Error())
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialog_EncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		dialog Dialog
	}{
		{name: "idle", dialog: nil},
		{name: "withdraw link", dialog: AwaitingWithdrawLink{}},
		{name: "withdraw amount", dialog: AwaitingWithdrawAmount{Link: "https://t.me/chan/42"}},
		{name: "redeem code", dialog: AwaitingRedeemCode{}},
		{name: "admin password", dialog: AwaitingAdminPassword{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeDialog(tt.dialog)
			require.NoError(t, err)

			decoded, err := DecodeDialog(data)
			require.NoError(t, err)
			assert.Equal(t, tt.dialog, decoded)
		})
	}
}

func TestDecodeDialog_UnknownKind(t *testing.T) {
	_, err := DecodeDialog([]byte(`{"kind":"awaiting_something"}`))
	assert.Error(t, err)
}

func TestDecodeDialog_Malformed(t *testing.T) {
	_, err := DecodeDialog([]byte(`not json`))
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, DialogIdle, KindOf(nil))
	assert.Equal(t, DialogWithdrawAmount, KindOf(AwaitingWithdrawAmount{Link: "x"}))
}

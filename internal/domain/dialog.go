package domain

import (
	"encoding/json"
	"fmt"
)

// DialogKind identifies the step a user is at in a multi-step dialog
type DialogKind string

const (
	DialogIdle           DialogKind = "idle"
	DialogWithdrawLink   DialogKind = "awaiting_withdraw_link"
	DialogWithdrawAmount DialogKind = "awaiting_withdraw_amount"
	DialogRedeemCode     DialogKind = "awaiting_redeem_code"
	DialogAdminPassword  DialogKind = "awaiting_admin_password"
)

// Dialog is the user's current conversation state. A nil Dialog is idle.
// Each state carries only the data it needs.
type Dialog interface {
	Kind() DialogKind
}

// AwaitingWithdrawLink waits for the post link to boost
type AwaitingWithdrawLink struct{}

// AwaitingWithdrawAmount waits for the number of views for Link
type AwaitingWithdrawAmount struct {
	Link string
}

// AwaitingRedeemCode waits for a redemption code
type AwaitingRedeemCode struct{}

// AwaitingAdminPassword waits for the admin panel password
type AwaitingAdminPassword struct{}

func (AwaitingWithdrawLink) Kind() DialogKind   { return DialogWithdrawLink }
func (AwaitingWithdrawAmount) Kind() DialogKind { return DialogWithdrawAmount }
func (AwaitingRedeemCode) Kind() DialogKind     { return DialogRedeemCode }
func (AwaitingAdminPassword) Kind() DialogKind  { return DialogAdminPassword }

// KindOf returns the kind of d, treating nil as idle
func KindOf(d Dialog) DialogKind {
	if d == nil {
		return DialogIdle
	}
	return d.Kind()
}

type dialogRecord struct {
	Kind DialogKind `json:"kind"`
	Link string     `json:"link,omitempty"`
}

// EncodeDialog serializes a dialog for external state stores
func EncodeDialog(d Dialog) ([]byte, error) {
	rec := dialogRecord{Kind: KindOf(d)}
	if w, ok := d.(AwaitingWithdrawAmount); ok {
		rec.Link = w.Link
	}
	return json.Marshal(rec)
}

// DecodeDialog is the inverse of EncodeDialog
func DecodeDialog(data []byte) (Dialog, error) {
	var rec dialogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode dialog: %w", err)
	}

	switch rec.Kind {
	case DialogIdle, "":
		return nil, nil
	case DialogWithdrawLink:
		return AwaitingWithdrawLink{}, nil
	case DialogWithdrawAmount:
		return AwaitingWithdrawAmount{Link: rec.Link}, nil
	case DialogRedeemCode:
		return AwaitingRedeemCode{}, nil
	case DialogAdminPassword:
		return AwaitingAdminPassword{}, nil
	default:
		return nil, fmt.Errorf("decode dialog: unknown kind %q", rec.Kind)
	}
}

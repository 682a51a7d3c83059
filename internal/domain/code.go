package domain

import "strings"

const (
	// CodeLength is the number of characters in a generated redemption code
	CodeLength = 8
	// MaxCodeValue caps the points a single code can carry
	MaxCodeValue = 1_000_000_000
)

// RedemptionCode is a single-use token worth a fixed number of points
type RedemptionCode struct {
	Value  int     `json:"amount"`
	Used   bool    `json:"used"`
	UsedBy *string `json:"used_by"`
}

// NormalizeCode folds user input to the stored code form
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// OrderResult is the normalized outcome of a fulfillment call
type OrderResult struct {
	OrderID string
	Reason  string
}

// Accepted reports whether the panel confirmed the order
func (r OrderResult) Accepted() bool {
	return r.OrderID != ""
}

// OrderAccepted builds an accepted result
func OrderAccepted(orderID string) OrderResult {
	return OrderResult{OrderID: orderID}
}

// OrderRejected builds a rejected result
func OrderRejected(reason string) OrderResult {
	return OrderResult{Reason: reason}
}

// Settings are the runtime-editable parts of the configuration
type Settings struct {
	PayoutChannel       string   `json:"payout_channel"`
	EligibilityChannels []string `json:"eligibility_channels"`
}

// Package payments coordinates a booking's payment sub-state with the
// external payment provider. The coordinator owns the payment_status column
// and the payment attempt rows; seat accounting stays with the ledger.
package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

type CallbackKind string

const (
	CALLBACK_PAYMENT_SUCCEEDED CallbackKind = "payment_succeeded"
	CALLBACK_PAYMENT_FAILED    CallbackKind = "payment_failed"
	CALLBACK_REFUND_SUCCEEDED  CallbackKind = "refund_succeeded"
	CALLBACK_IGNORED           CallbackKind = "ignored"
)

// CallbackEvent is a provider notification normalized to what the
// coordinator needs: what happened, to which charge, and why.
type CallbackEvent struct {
	Kind        CallbackKind
	ProviderRef string
	Amount      decimal.Decimal
	Currency    string
	Reason      string
}

// Provider is the outbound payment gateway. Implementations must verify
// callback authenticity themselves; the coordinator trusts a verified
// CallbackEvent.
type Provider interface {
	// Charge opens a charge for the amount and returns the provider's
	// reference for it. The outcome arrives later via callback.
	Charge(ctx context.Context, amount decimal.Decimal, currency string, description string) (string, error)
	// Refund returns amount against an earlier successful charge.
	Refund(ctx context.Context, providerRef string, amount decimal.Decimal, currency string) (string, error)
	// VerifyCallback authenticates a raw provider notification and
	// normalizes it. Unknown but authentic events come back as ignored.
	VerifyCallback(payload []byte, signature string) (*CallbackEvent, error)
}

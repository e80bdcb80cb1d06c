package payments

import (
	"fmt"
	"testing"
	"time"

	"etix/src/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func signedHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
}

func TestVerifyCallbackPaymentSucceeded(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	p := NewStripeProvider()

	payload := []byte(`{"api_version":"2025-04-30.basil","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","amount_received":5000,"currency":"usd"}}}`)
	ev, err := p.VerifyCallback(payload, signedHeader(t, payload, "whsec_test"))
	require.NoError(t, err)

	assert.Equal(t, CALLBACK_PAYMENT_SUCCEEDED, ev.Kind)
	assert.Equal(t, "pi_123", ev.ProviderRef)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "USD", ev.Currency)
}

func TestVerifyCallbackPaymentFailed(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	p := NewStripeProvider()

	payload := []byte(`{"api_version":"2025-04-30.basil","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_123","last_payment_error":{"message":"card declined"}}}}`)
	ev, err := p.VerifyCallback(payload, signedHeader(t, payload, "whsec_test"))
	require.NoError(t, err)

	assert.Equal(t, CALLBACK_PAYMENT_FAILED, ev.Kind)
	assert.Equal(t, "pi_123", ev.ProviderRef)
	assert.Equal(t, "card declined", ev.Reason)
}

func TestVerifyCallbackIgnoresOtherEvents(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	p := NewStripeProvider()

	payload := []byte(`{"api_version":"2025-04-30.basil","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	ev, err := p.VerifyCallback(payload, signedHeader(t, payload, "whsec_test"))
	require.NoError(t, err)
	assert.Equal(t, CALLBACK_IGNORED, ev.Kind)
}

func TestVerifyCallbackRejectsBadSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	p := NewStripeProvider()

	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	_, err := p.VerifyCallback(payload, signedHeader(t, payload, "whsec_other"))
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestMinorUnits(t *testing.T) {
	price, err := decimal.NewFromString("19.99")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), minorUnits(price))
	assert.Equal(t, int64(2500), minorUnits(decimal.NewFromInt(25)))
}

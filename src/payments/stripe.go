package payments

import (
	"context"
	"log"
	"os"
	"strings"

	"etix/src/lib"
	"etix/src/types"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

// StripeProvider drives charges and refunds through the Stripe API and
// verifies webhook signatures on the way back in.
type StripeProvider struct {
	whsecret string
}

func NewStripeProvider() *StripeProvider {
	return &StripeProvider{
		whsecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}
}

func (p *StripeProvider) Charge(ctx context.Context, amount decimal.Decimal, currency string, description string) (string, error) {
	sc := lib.GetStripeClient()
	params := stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(minorUnits(amount)),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(description),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := sc.V1PaymentIntents.Create(ctx, &params)
	if err != nil {
		return "", types.WrapError(types.ErrProviderError, err, "could not create payment intent")
	}
	log.Printf("[stripe] PaymentIntent created: %s %s\n", pi.ID, pi.Status)
	return pi.ID, nil
}

func (p *StripeProvider) Refund(ctx context.Context, providerRef string, amount decimal.Decimal, currency string) (string, error) {
	sc := lib.GetStripeClient()
	params := stripe.RefundCreateParams{
		PaymentIntent: stripe.String(providerRef),
		Amount:        stripe.Int64(minorUnits(amount)),
	}
	re, err := sc.V1Refunds.Create(ctx, &params)
	if err != nil {
		return "", types.WrapError(types.ErrProviderError, err, "could not create refund for %s", providerRef)
	}
	log.Printf("[stripe] Refund created: %s %s\n", re.ID, re.Status)
	return re.ID, nil
}

func (p *StripeProvider) VerifyCallback(payload []byte, signature string) (*CallbackEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.whsecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %s\n", err.Error())
		return nil, types.WrapError(types.ErrValidation, err, "invalid webhook signature")
	}

	raw := []byte(event.Data.Raw)
	switch event.Type {
	case "payment_intent.succeeded":
		return &CallbackEvent{
			Kind:        CALLBACK_PAYMENT_SUCCEEDED,
			ProviderRef: gjson.GetBytes(raw, "id").String(),
			Amount:      decimal.New(gjson.GetBytes(raw, "amount_received").Int(), -2),
			Currency:    strings.ToUpper(gjson.GetBytes(raw, "currency").String()),
		}, nil
	case "payment_intent.payment_failed":
		return &CallbackEvent{
			Kind:        CALLBACK_PAYMENT_FAILED,
			ProviderRef: gjson.GetBytes(raw, "id").String(),
			Reason:      gjson.GetBytes(raw, "last_payment_error.message").String(),
		}, nil
	case "refund.created", "refund.updated":
		if gjson.GetBytes(raw, "status").String() != "succeeded" {
			return &CallbackEvent{Kind: CALLBACK_IGNORED}, nil
		}
		return &CallbackEvent{
			Kind:        CALLBACK_REFUND_SUCCEEDED,
			ProviderRef: gjson.GetBytes(raw, "payment_intent").String(),
			Amount:      decimal.New(gjson.GetBytes(raw, "amount").Int(), -2),
			Currency:    strings.ToUpper(gjson.GetBytes(raw, "currency").String()),
		}, nil
	default:
		log.Printf("[stripe] ignoring event type %s\n", event.Type)
		return &CallbackEvent{Kind: CALLBACK_IGNORED}, nil
	}
}

// minorUnits converts a decimal major-unit amount into the integer minor
// units the provider expects. Two-decimal currencies only.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

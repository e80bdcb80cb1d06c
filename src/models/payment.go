package models

import (
	"time"

	"etix/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one payment attempt against a booking. At most one
// non-terminal attempt exists per booking; completed/failed/refunded rows
// are kept for audit.
type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID   uint            `json:"booking_id,omitempty"`
	Method      string          `json:"method,omitempty"`
	ProviderRef *string         `gorm:"index" json:"provider_ref,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	// RefundedAmount accumulates every refund issued against this attempt;
	// the coordinator rejects refunds that would push it past Amount.
	RefundedAmount decimal.Decimal         `gorm:"type:numeric(12,2)" json:"refunded_amount"`
	Currency       string                  `json:"currency,omitempty"`
	Status         types.TransactionStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaidAt         *time.Time              `json:"paid_at,omitempty"`
	RefundedAt     *time.Time              `json:"refunded_at,omitempty"`
	FailedReason   *string                 `json:"failed_reason,omitempty"`
	RefundReason   *string                 `json:"refund_reason,omitempty"`
	Metadata       types.JSONB             `gorm:"type:jsonb" json:"metadata,omitempty"`

	Booking Booking `gorm:"foreignKey:booking_id" json:"-"`

	types.Timestamps
}

func (p *Payment) TerminalStatus() bool {
	switch p.Status {
	case types.TRANSACTION_COMPLETED, types.TRANSACTION_FAILED, types.TRANSACTION_REFUNDED:
		return true
	}
	return false
}

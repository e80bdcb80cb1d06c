package models

import (
	"time"

	"etix/src/types"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	UserID        uint                `json:"user_id,omitempty"`
	EventID       uint                `json:"event_id,omitempty"`
	TicketID      uint                `json:"ticket_id,omitempty"`
	Qty           uint                `json:"qty,omitempty"`
	TotalPrice    decimal.Decimal     `gorm:"type:numeric(12,2)" json:"total_price"`
	Currency      string              `json:"currency,omitempty"`
	Status        types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'pending'" json:"payment_status,omitempty"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy *uint      `json:"checked_in_by,omitempty"`

	TransferStatus      types.TransferStatus `gorm:"default:'none'" json:"transfer_status,omitempty"`
	TransferCode        *string              `gorm:"index" json:"-"`
	TransferFromUserID  *uint                `json:"transfer_from,omitempty"`
	TransferToUserID    *uint                `json:"transfer_to,omitempty"`
	TransferInitiatedAt *time.Time           `json:"transfer_initiated_at,omitempty"`
	TransferCompletedAt *time.Time           `json:"transfer_completed_at,omitempty"`

	Event        *Event        `gorm:"foreignKey:event_id" json:"event,omitempty"`
	User         *User         `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Ticket       *Ticket       `gorm:"foreignKey:ticket_id" json:"ticket,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
	Payments     []Payment     `json:"payments,omitempty"`

	types.Timestamps
}

func (b *Booking) CheckedIn() bool {
	return b.CheckedInAt != nil
}

// Terminal reports whether the booking can no longer change status.
func (b *Booking) Terminal() bool {
	return b.Status == types.BOOKING_CANCELED || b.Status == types.BOOKING_REFUNDED
}

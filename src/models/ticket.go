package models

import (
	"time"

	"etix/src/types"

	"github.com/shopspring/decimal"
)

// Ticket is a ticket type: a finite pool of admissions for one event at one
// price point. Quantity is the total capacity; Remaining is the live counter
// the inventory ledger owns. Nothing else mutates Remaining.
type Ticket struct {
	ID          uint               `gorm:"primarykey" json:"id"`
	EventID     uint               `json:"event_id,omitempty"`
	Name        string             `json:"name,omitempty"`
	Tier        string             `json:"tier,omitempty"`
	Status      types.TicketStatus `gorm:"default:'draft'" json:"status,omitempty"`
	Price       decimal.Decimal    `gorm:"type:numeric(12,2)" json:"price"`
	Currency    string             `json:"currency,omitempty"`
	Qty         uint               `json:"qty"`
	Remaining   uint               `json:"remaining"`
	MaxPerOrder *uint              `json:"max_per_order,omitempty"`
	SalesStart  *time.Time         `json:"sales_start,omitempty"`
	SalesEnd    *time.Time         `json:"sales_end,omitempty"`

	Event    Event     `json:"event,omitempty"`
	Bookings []Booking `json:"bookings,omitempty"`

	Stats *TicketStats `gorm:"-" json:"stats,omitempty"`

	types.Timestamps
}

type TicketStats struct {
	TicketID uint `json:"ticket_id,omitempty"`
	Free     uint `json:"free"`
	Reserved uint `json:"reserved"`
}

// Sellable reports whether the ticket accepts new reservations at all;
// the sales window is checked separately so callers can distinguish the
// two rejection reasons.
func (t *Ticket) Sellable() bool {
	return t.Status == types.TICKET_ACTIVE || t.Status == types.TICKET_PUBLISHED
}

// WindowOpen reports whether now falls inside the optional sales window.
func (t *Ticket) WindowOpen(now time.Time) bool {
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return false
	}
	if t.SalesEnd != nil && !now.Before(*t.SalesEnd) {
		return false
	}
	return true
}

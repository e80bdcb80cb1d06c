package models

import "etix/src/types"

// Reservation records one successful ledger decrement: Qty seats of a
// ticket held for a booking. Releasing flips the status back without
// deleting the row, so capacity movements stay auditable.
type Reservation struct {
	ID        uint                    `gorm:"primarykey" json:"id"`
	TicketID  uint                    `json:"ticket_id,omitempty"`
	BookingID uint                    `json:"booking_id,omitempty"`
	Qty       uint                    `json:"qty,omitempty"`
	Status    types.ReservationStatus `gorm:"default:'reserved'" json:"status,omitempty"`

	Ticket  Ticket  `json:"ticket,omitempty"`
	Booking Booking `json:"booking,omitempty"`

	types.Timestamps
}

package fsm

import "etix/src/types"

// BookingTable is the booking status machine. The engine layers time and
// attribute guards (event start, checked_in_at) on top of the pure table.
var BookingTable = Table[types.BookingStatus]{
	types.BOOKING_PENDING:   {types.BOOKING_CONFIRMED, types.BOOKING_CANCELED},
	types.BOOKING_CONFIRMED: {types.BOOKING_CANCELED, types.BOOKING_REFUNDED},
	types.BOOKING_CANCELED:  {},
	types.BOOKING_REFUNDED:  {},
}

var PaymentTable = Table[types.PaymentStatus]{
	types.PAYMENT_PENDING:    {types.PAYMENT_PROCESSING, types.PAYMENT_CANCELED},
	types.PAYMENT_PROCESSING: {types.PAYMENT_PAID, types.PAYMENT_FAILED},
	types.PAYMENT_PAID:       {types.PAYMENT_REFUNDED},
	types.PAYMENT_FAILED:     {types.PAYMENT_PENDING, types.PAYMENT_CANCELED},
	types.PAYMENT_REFUNDED:   {},
	types.PAYMENT_CANCELED:   {types.PAYMENT_PENDING},
}

var TicketTable = Table[types.TicketStatus]{
	types.TICKET_DRAFT:     {types.TICKET_ACTIVE, types.TICKET_ARCHIVED},
	types.TICKET_ACTIVE:    {types.TICKET_PAUSED, types.TICKET_PUBLISHED, types.TICKET_ARCHIVED},
	types.TICKET_PAUSED:    {types.TICKET_ACTIVE, types.TICKET_ARCHIVED},
	types.TICKET_PUBLISHED: {types.TICKET_PAUSED, types.TICKET_ARCHIVED},
	types.TICKET_ARCHIVED:  {},
}

var EventTable = Table[types.EventStatus]{
	types.EVENT_DRAFT:     {types.EVENT_PUBLISHED, types.EVENT_CANCELED},
	types.EVENT_PUBLISHED: {types.EVENT_COMPLETED, types.EVENT_CANCELED},
	types.EVENT_COMPLETED: {},
	types.EVENT_CANCELED:  {},
}

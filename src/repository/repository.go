// Package repository holds the gorm-backed data access layer. Services
// depend on the interfaces only; tests swap in hand-written fakes.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner wraps a unit of work in a database transaction. Repositories
// receive the transaction handle explicitly so multi-aggregate operations
// commit or roll back as one.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

type Repository struct {
	Tx           TxRunner
	Events       EventRepository
	Tickets      TicketRepository
	Bookings     BookingRepository
	Reservations ReservationRepository
	Payments     PaymentRepository
}

func New(db *gorm.DB) *Repository {
	return &Repository{
		Tx:           NewTxRunner(db),
		Events:       NewEventRepository(db),
		Tickets:      NewTicketRepository(db),
		Bookings:     NewBookingRepository(db),
		Reservations: NewReservationRepository(db),
		Payments:     NewPaymentRepository(db),
	}
}

// Package ledger owns the seat inventory for ticket types. Every change to
// a ticket's remaining counter goes through here; the guarded SQL decrement
// is the single point that prevents overselling under concurrency.
package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"etix/src/config"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/types"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Ledger struct {
	tx           repository.TxRunner
	tickets      repository.TicketRepository
	reservations repository.ReservationRepository
	rdb          *redis.Client
	maxRetries   int
	backoff      time.Duration
}

func New(repo *repository.Repository, rdb *redis.Client) *Ledger {
	return &Ledger{
		tx:           repo.Tx,
		tickets:      repo.Tickets,
		reservations: repo.Reservations,
		rdb:          rdb,
		maxRetries:   config.ReserveMaxRetries(),
		backoff:      50 * time.Millisecond,
	}
}

// ReserveTx takes qty seats from the ticket pool inside the caller's
// transaction and records a reservation row tied to the booking. The
// decrement only matches when at least qty seats remain, so two competing
// transactions can never both win the last seat.
func (l *Ledger) ReserveTx(ctx context.Context, tx *gorm.DB, ticketID, bookingID, qty uint) error {
	if qty == 0 {
		return types.NewError(types.ErrValidation, "quantity must be at least 1")
	}
	rows, err := l.tickets.DecrementRemaining(ctx, tx, ticketID, qty)
	if err != nil {
		return err
	}
	if rows == 0 {
		return types.NewError(types.ErrExceedsCapacity, "not enough seats left on ticket %d for qty %d", ticketID, qty)
	}
	return l.reservations.Create(ctx, tx, &models.Reservation{
		TicketID:  ticketID,
		BookingID: bookingID,
		Qty:       qty,
		Status:    types.RESERVATION_RESERVED,
	})
}

// ReleaseTx returns the booking's reserved seats to the pool and marks its
// reservations released. The quantity comes from the active reservation
// rows, so calling it twice for the same booking is a no-op, and the
// increment is additionally capped at the ticket's capacity.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *gorm.DB, ticketID, bookingID uint) error {
	qty, err := l.reservations.ActiveQtyByBooking(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if qty == 0 {
		return nil
	}
	if err := l.tickets.IncrementRemaining(ctx, tx, ticketID, uint(qty)); err != nil {
		return err
	}
	return l.reservations.MarkByBooking(ctx, tx, bookingID, types.RESERVATION_RELEASED)
}

// ConsumeTx finalizes the booking's reservations without touching the
// counter; the seats stay gone for good once the booking confirms.
func (l *Ledger) ConsumeTx(ctx context.Context, tx *gorm.DB, bookingID uint) error {
	return l.reservations.MarkByBooking(ctx, tx, bookingID, types.RESERVATION_CONSUMED)
}

// ReacquireTx re-reserves seats for a booking whose earlier reservation was
// released after a failed payment attempt. No-op while the booking still
// holds active reservations.
func (l *Ledger) ReacquireTx(ctx context.Context, tx *gorm.DB, ticketID, bookingID, qty uint) error {
	active, err := l.reservations.ActiveQtyByBooking(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	return l.ReserveTx(ctx, tx, ticketID, bookingID, qty)
}

// RestockTx puts qty seats back for a refunded booking whose reservations
// were consumed at confirmation, so ReleaseTx has nothing to release. The
// increment stays capped at capacity.
func (l *Ledger) RestockTx(ctx context.Context, tx *gorm.DB, ticketID, qty uint) error {
	return l.tickets.IncrementRemaining(ctx, tx, ticketID, qty)
}

// Reserve runs ReserveTx on its own transaction, retrying a bounded number
// of times when the database reports a serialization conflict.
func (l *Ledger) Reserve(ctx context.Context, ticketID, bookingID, qty uint) error {
	err := l.WithRetry(ctx, func() error {
		return l.tx.RunInTx(ctx, func(tx *gorm.DB) error {
			return l.ReserveTx(ctx, tx, ticketID, bookingID, qty)
		})
	})
	if err != nil {
		return err
	}
	l.RefreshAvailability(ctx, ticketID)
	return nil
}

// Release runs ReleaseTx on its own transaction.
func (l *Ledger) Release(ctx context.Context, ticketID, bookingID uint) error {
	err := l.WithRetry(ctx, func() error {
		return l.tx.RunInTx(ctx, func(tx *gorm.DB) error {
			return l.ReleaseTx(ctx, tx, ticketID, bookingID)
		})
	})
	if err != nil {
		return err
	}
	l.RefreshAvailability(ctx, ticketID)
	return nil
}

// Seats reports the ticket's live availability: free seats straight from
// the counter and the active reservation total alongside it.
func (l *Ledger) Seats(ctx context.Context, ticketID uint) (*models.TicketStats, error) {
	ticket, err := l.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	reserved, err := l.reservations.SumActiveByTicket(ctx, nil, ticketID)
	if err != nil {
		return nil, err
	}
	return &models.TicketStats{
		TicketID: ticketID,
		Free:     ticket.Remaining,
		Reserved: uint(reserved),
	}, nil
}

// RefreshAvailability mirrors the remaining count into redis for cheap
// availability reads. Best effort: a cache miss never fails a booking.
func (l *Ledger) RefreshAvailability(ctx context.Context, ticketID uint) {
	if l.rdb == nil {
		return
	}
	ticket, err := l.tickets.FindByID(ctx, ticketID)
	if err != nil {
		log.Printf("[ledger] could not load ticket %d for availability mirror: %s\n", ticketID, err.Error())
		return
	}
	key := availabilityKey(ticketID)
	if err := l.rdb.Set(ctx, key, ticket.Remaining, 0).Err(); err != nil {
		log.Printf("[ledger] could not mirror availability for %s: %s\n", key, err.Error())
	}
}

// WithRetry re-runs fn on serialization or deadlock failures, backing off
// linearly, and converts exhaustion into a service_unavailable error.
func (l *Ledger) WithRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.backoff * time.Duration(attempt)):
			}
		}
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		log.Printf("[ledger] serialization conflict, attempt %d/%d: %s\n", attempt+1, l.maxRetries+1, err.Error())
	}
	return types.WrapError(types.ErrServiceUnavailable, err, "inventory busy, retries exhausted")
}

// retryable matches the postgres serialization and deadlock failures that
// are safe to re-run; everything else surfaces immediately.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40p01")
}

func availabilityKey(ticketID uint) string {
	return fmt.Sprintf("tickets:%d:remaining", ticketID)
}

// Package booking drives a booking from creation through confirmation,
// check-in, transfer, and cancellation. All seat accounting is delegated to
// the inventory ledger and all status writes go through the fsm tables.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"etix/src/config"
	"etix/src/fsm"
	"etix/src/ledger"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/types"
	"etix/src/utils"

	"gorm.io/gorm"
)

type Engine struct {
	tx       repository.TxRunner
	bookings repository.BookingRepository
	tickets  repository.TicketRepository
	events   repository.EventRepository
	ledger   *ledger.Ledger

	bookingFSM fsm.Machine[types.BookingStatus]
	paymentFSM fsm.Machine[types.PaymentStatus]

	ttl time.Duration

	// Now is the clock for every time guard; tests pin it.
	Now func() time.Time
}

func NewEngine(repo *repository.Repository, led *ledger.Ledger) *Engine {
	return &Engine{
		tx:         repo.Tx,
		bookings:   repo.Bookings,
		tickets:    repo.Tickets,
		events:     repo.Events,
		ledger:     led,
		bookingFSM: fsm.New(fsm.BookingTable),
		paymentFSM: fsm.New(fsm.PaymentTable),
		ttl:        config.ReservationTTL(),
		Now:        time.Now,
	}
}

// Create validates the order, reserves seats, and persists the pending
// booking, all in one transaction. Either the booking exists with its seats
// held, or nothing happened.
func (e *Engine) Create(ctx context.Context, input types.CreateBookingInput) (*models.Booking, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	now := e.Now()

	var booking *models.Booking
	err := e.ledger.WithRetry(ctx, func() error {
		booking = nil
		return e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
			ticket, err := e.tickets.FindByIDForUpdate(ctx, tx, input.TicketID)
			if err != nil {
				return notFoundOr(err, "ticket %d not found", input.TicketID)
			}
			if ticket.EventID != input.EventID {
				return types.NewError(types.ErrValidation, "ticket %d does not belong to event %d", input.TicketID, input.EventID)
			}
			event, err := e.events.FindByID(ctx, ticket.EventID)
			if err != nil {
				return notFoundOr(err, "event %d not found", ticket.EventID)
			}

			if event.Status != types.EVENT_PUBLISHED {
				return types.NewError(types.ErrNotAvailable, "event %q is not open for booking", event.Title)
			}
			if event.Ended(now) {
				return types.NewError(types.ErrEventEnded, "event %q has ended", event.Title)
			}
			if !ticket.Sellable() {
				return types.NewError(types.ErrNotAvailable, "ticket %q is not on sale", ticket.Name)
			}
			if !ticket.WindowOpen(now) {
				return types.NewError(types.ErrSalesEnded, "sales window for ticket %q is closed", ticket.Name)
			}
			if ticket.MaxPerOrder != nil && input.Qty > *ticket.MaxPerOrder {
				return types.NewError(types.ErrExceedsMaxPerOrder, "qty %d exceeds the per-order limit of %d", input.Qty, *ticket.MaxPerOrder)
			}

			b := &models.Booking{
				UserID:        input.UserID,
				EventID:       input.EventID,
				TicketID:      input.TicketID,
				Qty:           input.Qty,
				TotalPrice:    utils.OrderTotal(ticket.Price, input.Qty),
				Currency:      ticket.Currency,
				Status:        types.BOOKING_PENDING,
				PaymentStatus: types.PAYMENT_PENDING,
			}
			if err := e.bookings.Create(ctx, tx, b); err != nil {
				return err
			}
			if err := e.ledger.ReserveTx(ctx, tx, ticket.ID, b.ID, input.Qty); err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.ledger.RefreshAvailability(ctx, input.TicketID)
	log.Printf("[booking] created booking %d: event=%d ticket=%d qty=%d\n", booking.ID, booking.EventID, booking.TicketID, booking.Qty)
	return booking, nil
}

// Cancel voids a pending or confirmed booking and returns its seats. Paid
// bookings go through the refund flow instead; a checked-in booking or one
// whose event already started cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, bookingID uint) error {
	now := e.Now()
	var ticketID uint
	err := e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		booking, err := e.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking %d not found", bookingID)
		}
		if booking.Terminal() {
			return types.NewError(types.ErrCancellationNotAllowed, "booking %d is already %s", bookingID, booking.Status)
		}
		if booking.CheckedIn() {
			return types.NewError(types.ErrCancellationNotAllowed, "booking %d is already checked in", bookingID)
		}
		switch booking.PaymentStatus {
		case types.PAYMENT_PAID:
			return types.NewError(types.ErrCancellationNotAllowed, "booking %d is paid, request a refund instead", bookingID)
		case types.PAYMENT_PROCESSING:
			return types.NewError(types.ErrCancellationNotAllowed, "payment for booking %d is still processing", bookingID)
		}
		event, err := e.events.FindByID(ctx, booking.EventID)
		if err != nil {
			return notFoundOr(err, "event %d not found", booking.EventID)
		}
		if event.Started(now) {
			return types.NewError(types.ErrCancellationNotAllowed, "event %q has already started", event.Title)
		}

		err = e.bookingFSM.Transition(booking.Status, types.BOOKING_CANCELED, func(target types.BookingStatus) error {
			return e.bookings.UpdateStatus(ctx, tx, bookingID, target)
		})
		if err != nil {
			return err
		}
		if booking.PaymentStatus == types.PAYMENT_PENDING || booking.PaymentStatus == types.PAYMENT_FAILED {
			err = e.paymentFSM.Transition(booking.PaymentStatus, types.PAYMENT_CANCELED, func(target types.PaymentStatus) error {
				return e.bookings.UpdatePaymentStatus(ctx, tx, bookingID, target)
			})
			if err != nil {
				return err
			}
		}
		ticketID = booking.TicketID
		return e.ledger.ReleaseTx(ctx, tx, booking.TicketID, bookingID)
	})
	if err != nil {
		return err
	}
	e.ledger.RefreshAvailability(ctx, ticketID)
	log.Printf("[booking] cancelled booking %d\n", bookingID)
	return nil
}

// ConfirmTx moves a paid-for booking to confirmed and consumes its
// reservations. Runs inside the payment coordinator's transaction.
func (e *Engine) ConfirmTx(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	err := e.bookingFSM.Transition(booking.Status, types.BOOKING_CONFIRMED, func(target types.BookingStatus) error {
		return e.bookings.UpdateStatus(ctx, tx, booking.ID, target)
	})
	if err != nil {
		return err
	}
	return e.ledger.ConsumeTx(ctx, tx, booking.ID)
}

// IssueETicket renders the admission QR for a confirmed booking. Failures
// are logged, not fatal: the pass can be regenerated on demand.
func (e *Engine) IssueETicket(booking *models.Booking) string {
	filepath, err := utils.IssueTicketQR(booking)
	if err != nil {
		log.Printf("[booking] could not issue e-ticket for booking %d: %s\n", booking.ID, err.Error())
		return ""
	}
	log.Printf("[booking] issued e-ticket for booking %d at %s\n", booking.ID, filepath)
	return filepath
}

// CheckIn admits the holder at the gate. Only a confirmed booking is
// admissible, only once, and only between event start and end.
func (e *Engine) CheckIn(ctx context.Context, bookingID, staffID uint) error {
	now := e.Now()
	return e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		booking, err := e.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking %d not found", bookingID)
		}
		if booking.Status != types.BOOKING_CONFIRMED {
			return types.NewError(types.ErrInvalidStatus, "booking %d is %s, only confirmed bookings check in", bookingID, booking.Status)
		}
		if booking.CheckedIn() {
			return types.NewError(types.ErrAlreadyCheckedIn, "booking %d was checked in at %s", bookingID, booking.CheckedInAt.Format(time.RFC3339))
		}
		event, err := e.events.FindByID(ctx, booking.EventID)
		if err != nil {
			return notFoundOr(err, "event %d not found", booking.EventID)
		}
		if !event.Started(now) {
			return types.NewError(types.ErrCheckInNotAllowed, "doors for %q are not open yet", event.Title)
		}
		if event.Ended(now) {
			return types.NewError(types.ErrEventEnded, "event %q has ended", event.Title)
		}
		return e.bookings.SetCheckedIn(ctx, tx, bookingID, now, staffID)
	})
}

// RevertCheckIn undoes a mistaken gate scan.
func (e *Engine) RevertCheckIn(ctx context.Context, bookingID uint) error {
	return e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		booking, err := e.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking %d not found", bookingID)
		}
		if !booking.CheckedIn() {
			return types.NewError(types.ErrNotCheckedIn, "booking %d is not checked in", bookingID)
		}
		return e.bookings.ClearCheckedIn(ctx, tx, bookingID)
	})
}

// Transfer opens a pending transfer of the booking to another user and
// returns the single-use code the recipient redeems.
func (e *Engine) Transfer(ctx context.Context, bookingID, fromUserID, toUserID uint) (string, error) {
	now := e.Now()
	code := utils.NewTransferCode()
	err := e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		booking, err := e.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking %d not found", bookingID)
		}
		if booking.UserID != fromUserID {
			return types.NewError(types.ErrTransferNotAllowed, "booking %d does not belong to user %d", bookingID, fromUserID)
		}
		if booking.Status != types.BOOKING_CONFIRMED || booking.PaymentStatus != types.PAYMENT_PAID {
			return types.NewError(types.ErrTransferNotAllowed, "only confirmed, paid bookings can be transferred")
		}
		if booking.CheckedIn() {
			return types.NewError(types.ErrTransferNotAllowed, "booking %d is already checked in", bookingID)
		}
		if booking.TransferStatus == types.TRANSFER_PENDING {
			return types.NewError(types.ErrTransferNotAllowed, "a transfer for booking %d is already pending", bookingID)
		}
		event, err := e.events.FindByID(ctx, booking.EventID)
		if err != nil {
			return notFoundOr(err, "event %d not found", booking.EventID)
		}
		if event.Started(now) {
			return types.NewError(types.ErrTransferNotAllowed, "event %q has already started", event.Title)
		}
		return e.bookings.Updates(ctx, tx, bookingID, map[string]any{
			"transfer_status":       types.TRANSFER_PENDING,
			"transfer_code":         code,
			"transfer_from_user_id": fromUserID,
			"transfer_to_user_id":   toUserID,
			"transfer_initiated_at": now,
		})
	})
	if err != nil {
		return "", err
	}
	log.Printf("[booking] transfer initiated for booking %d: %d -> %d\n", bookingID, fromUserID, toUserID)
	return code, nil
}

// AcceptTransfer redeems a transfer code and reassigns the booking to the
// accepting user. The code is cleared so it cannot be replayed.
func (e *Engine) AcceptTransfer(ctx context.Context, code string, userID uint) (*models.Booking, error) {
	now := e.Now()
	var accepted *models.Booking
	err := e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		booking, err := e.bookings.FindByTransferCode(ctx, tx, code)
		if err != nil {
			return notFoundOr(err, "no pending transfer for this code")
		}
		if booking.TransferStatus != types.TRANSFER_PENDING {
			return types.NewError(types.ErrTransferNotAllowed, "transfer for booking %d is not pending", booking.ID)
		}
		if booking.TransferToUserID != nil && *booking.TransferToUserID != userID {
			return types.NewError(types.ErrTransferNotAllowed, "transfer for booking %d is addressed to another user", booking.ID)
		}
		if booking.CheckedIn() {
			return types.NewError(types.ErrTransferNotAllowed, "booking %d is already checked in", booking.ID)
		}
		if err := e.bookings.Updates(ctx, tx, booking.ID, map[string]any{
			"user_id":               userID,
			"transfer_status":       types.TRANSFER_ACCEPTED,
			"transfer_code":         nil,
			"transfer_completed_at": now,
		}); err != nil {
			return err
		}
		booking.UserID = userID
		booking.TransferStatus = types.TRANSFER_ACCEPTED
		accepted = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[booking] transfer accepted for booking %d by user %d\n", accepted.ID, userID)
	return accepted, nil
}

// Expire sweeps pending bookings older than the reservation TTL: each one
// is cancelled and its seats go back to the pool. Bookings whose payment is
// mid-flight are left for the next sweep. Returns the number reaped.
func (e *Engine) Expire(ctx context.Context, limit int) (int, error) {
	cutoff := e.Now().Add(-e.ttl)
	stale, err := e.bookings.FindExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for i := range stale {
		id := stale[i].ID
		err := e.tx.RunInTx(ctx, func(tx *gorm.DB) error {
			booking, err := e.bookings.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			// Re-check under lock: the holder may have paid or cancelled
			// between the sweep query and now.
			if booking.Status != types.BOOKING_PENDING {
				return nil
			}
			if booking.PaymentStatus == types.PAYMENT_PROCESSING {
				return nil
			}
			err = e.bookingFSM.Transition(booking.Status, types.BOOKING_CANCELED, func(target types.BookingStatus) error {
				return e.bookings.UpdateStatus(ctx, tx, id, target)
			})
			if err != nil {
				return err
			}
			if booking.PaymentStatus == types.PAYMENT_PENDING || booking.PaymentStatus == types.PAYMENT_FAILED {
				err = e.paymentFSM.Transition(booking.PaymentStatus, types.PAYMENT_CANCELED, func(target types.PaymentStatus) error {
					return e.bookings.UpdatePaymentStatus(ctx, tx, id, target)
				})
				if err != nil {
					return err
				}
			}
			if err := e.ledger.ReleaseTx(ctx, tx, booking.TicketID, id); err != nil {
				return err
			}
			reaped++
			return nil
		})
		if err != nil {
			log.Printf("[booking] could not expire booking %d: %s\n", id, err.Error())
			continue
		}
		e.ledger.RefreshAvailability(ctx, stale[i].TicketID)
	}
	if reaped > 0 {
		log.Printf("[booking] expired %d stale pending bookings\n", reaped)
	}
	return reaped, nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewError(types.ErrNotFound, format, args...)
	}
	return err
}

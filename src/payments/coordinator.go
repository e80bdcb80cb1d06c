package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"etix/src/booking"
	"etix/src/config"
	"etix/src/fsm"
	"etix/src/ledger"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/types"
	"etix/src/utils"

	"gorm.io/gorm"
)

// Coordinator ties provider outcomes to the booking's payment sub-state.
// Provider callbacks are idempotent: replaying a notification never double
// confirms, double releases, or double refunds.
type Coordinator struct {
	tx       repository.TxRunner
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	engine   *booking.Engine
	ledger   *ledger.Ledger
	provider Provider

	paymentFSM fsm.Machine[types.PaymentStatus]
	bookingFSM fsm.Machine[types.BookingStatus]

	// holdOnFailure keeps seats reserved after a failed attempt; otherwise
	// they return to the pool and a retry must win them back.
	holdOnFailure bool

	Now func() time.Time
}

func NewCoordinator(repo *repository.Repository, engine *booking.Engine, led *ledger.Ledger, provider Provider) *Coordinator {
	return &Coordinator{
		tx:            repo.Tx,
		bookings:      repo.Bookings,
		payments:      repo.Payments,
		engine:        engine,
		ledger:        led,
		provider:      provider,
		paymentFSM:    fsm.New(fsm.PaymentTable),
		bookingFSM:    fsm.New(fsm.BookingTable),
		holdOnFailure: config.HoldSeatsOnPaymentFailure(),
		Now:           time.Now,
	}
}

// StartPayment opens a charge with the provider for a pending booking and
// records the attempt. A booking whose last attempt failed or was cancelled
// can start over; one mid-flight or already paid cannot.
func (c *Coordinator) StartPayment(ctx context.Context, bookingID uint, method string) (*models.Payment, error) {
	booked, err := c.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, notFoundOr(err, "booking %d not found", bookingID)
	}
	if booked.Status != types.BOOKING_PENDING {
		return nil, types.NewError(types.ErrInvalidStatus, "payment can only start on a pending booking, booking %d is %s", bookingID, booked.Status)
	}
	switch booked.PaymentStatus {
	case types.PAYMENT_PROCESSING:
		return nil, types.NewError(types.ErrInvalidStatus, "a payment for booking %d is already processing", bookingID)
	case types.PAYMENT_PAID:
		return nil, types.NewError(types.ErrInvalidStatus, "booking %d is already paid", bookingID)
	}

	desc := fmt.Sprintf("booking %d", bookingID)
	ref, err := c.provider.Charge(ctx, booked.TotalPrice, booked.Currency, desc)
	if err != nil {
		return nil, err
	}

	var attempt *models.Payment
	err = c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		b, err := c.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != types.BOOKING_PENDING {
			return types.NewError(types.ErrInvalidStatus, "booking %d changed to %s mid-payment", bookingID, b.Status)
		}
		status := b.PaymentStatus
		// A failed or cancelled attempt re-arms through pending first, and
		// has to win its seats back: failure released them.
		if status == types.PAYMENT_FAILED || status == types.PAYMENT_CANCELED {
			err = c.paymentFSM.Transition(status, types.PAYMENT_PENDING, func(target types.PaymentStatus) error {
				return c.bookings.UpdatePaymentStatus(ctx, tx, bookingID, target)
			})
			if err != nil {
				return err
			}
			if err := c.ledger.ReacquireTx(ctx, tx, b.TicketID, b.ID, b.Qty); err != nil {
				return err
			}
			status = types.PAYMENT_PENDING
		}
		err = c.paymentFSM.Transition(status, types.PAYMENT_PROCESSING, func(target types.PaymentStatus) error {
			return c.bookings.UpdatePaymentStatus(ctx, tx, bookingID, target)
		})
		if err != nil {
			return err
		}
		attempt = &models.Payment{
			BookingID:   bookingID,
			Method:      method,
			ProviderRef: &ref,
			Amount:      b.TotalPrice,
			Currency:    b.Currency,
			Status:      types.TRANSACTION_PROCESSING,
		}
		return c.payments.Create(ctx, tx, attempt)
	})
	if err != nil {
		log.Printf("[payments] charge %s opened but attempt not recorded: %s\n", ref, err.Error())
		return nil, err
	}
	log.Printf("[payments] started payment for booking %d: ref=%s\n", bookingID, ref)
	return attempt, nil
}

// HandleCallback verifies and dispatches a raw provider notification.
func (c *Coordinator) HandleCallback(ctx context.Context, payload []byte, signature string) error {
	ev, err := c.provider.VerifyCallback(payload, signature)
	if err != nil {
		return err
	}
	switch ev.Kind {
	case CALLBACK_PAYMENT_SUCCEEDED:
		return c.MarkPaid(ctx, ev.ProviderRef)
	case CALLBACK_PAYMENT_FAILED:
		return c.MarkFailed(ctx, ev.ProviderRef, ev.Reason)
	case CALLBACK_REFUND_SUCCEEDED:
		// Refunds are finalized synchronously in Refund; the callback is
		// just the provider echoing the outcome.
		log.Printf("[payments] refund settled for %s\n", ev.ProviderRef)
		return nil
	default:
		return nil
	}
}

// MarkPaid settles a successful charge: the attempt completes, the
// booking's payment flips to paid, and the booking confirms with its
// reservations consumed. Replays are no-ops.
func (c *Coordinator) MarkPaid(ctx context.Context, providerRef string) error {
	now := c.Now()
	var confirmed *models.Booking
	err := c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		attempt, err := c.payments.FindByProviderRef(ctx, tx, providerRef)
		if err != nil {
			return notFoundOr(err, "no payment attempt for ref %s", providerRef)
		}
		if attempt.Status == types.TRANSACTION_COMPLETED {
			return nil
		}
		b, err := c.bookings.FindByIDForUpdate(ctx, tx, attempt.BookingID)
		if err != nil {
			return err
		}

		status := b.PaymentStatus
		// The callback can outrun StartPayment's own commit.
		if status == types.PAYMENT_PENDING {
			err = c.paymentFSM.Transition(status, types.PAYMENT_PROCESSING, func(target types.PaymentStatus) error {
				return c.bookings.UpdatePaymentStatus(ctx, tx, b.ID, target)
			})
			if err != nil {
				return err
			}
			status = types.PAYMENT_PROCESSING
		}
		err = c.paymentFSM.Transition(status, types.PAYMENT_PAID, func(target types.PaymentStatus) error {
			return c.bookings.UpdatePaymentStatus(ctx, tx, b.ID, target)
		})
		if err != nil {
			return err
		}
		err = c.payments.Updates(ctx, tx, attempt.ID, map[string]any{
			"status":  types.TRANSACTION_COMPLETED,
			"paid_at": now,
		})
		if err != nil {
			return err
		}
		if err := c.engine.ConfirmTx(ctx, tx, b); err != nil {
			return err
		}
		b.Status = types.BOOKING_CONFIRMED
		b.PaymentStatus = types.PAYMENT_PAID
		confirmed = b
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed != nil {
		c.engine.IssueETicket(confirmed)
		log.Printf("[payments] booking %d confirmed: ref=%s\n", confirmed.ID, providerRef)
	}
	return nil
}

// MarkFailed records a failed charge. The booking stays pending so the
// holder can retry, but by default its seats go back to the pool and the
// retry has to re-reserve them; the hold policy keeps them instead.
func (c *Coordinator) MarkFailed(ctx context.Context, providerRef, reason string) error {
	var ticketID uint
	err := c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		attempt, err := c.payments.FindByProviderRef(ctx, tx, providerRef)
		if err != nil {
			return notFoundOr(err, "no payment attempt for ref %s", providerRef)
		}
		if attempt.TerminalStatus() {
			return nil
		}
		b, err := c.bookings.FindByIDForUpdate(ctx, tx, attempt.BookingID)
		if err != nil {
			return err
		}
		if b.PaymentStatus == types.PAYMENT_PAID {
			log.Printf("[payments] ignoring stale failure callback for paid booking %d\n", b.ID)
			return nil
		}
		err = c.payments.Updates(ctx, tx, attempt.ID, map[string]any{
			"status":        types.TRANSACTION_FAILED,
			"failed_reason": reason,
		})
		if err != nil {
			return err
		}

		status := b.PaymentStatus
		if status == types.PAYMENT_PENDING {
			err = c.paymentFSM.Transition(status, types.PAYMENT_PROCESSING, func(target types.PaymentStatus) error {
				return c.bookings.UpdatePaymentStatus(ctx, tx, b.ID, target)
			})
			if err != nil {
				return err
			}
			status = types.PAYMENT_PROCESSING
		}
		err = c.paymentFSM.Transition(status, types.PAYMENT_FAILED, func(target types.PaymentStatus) error {
			return c.bookings.UpdatePaymentStatus(ctx, tx, b.ID, target)
		})
		if err != nil {
			return err
		}

		if c.holdOnFailure {
			return nil
		}
		ticketID = b.TicketID
		return c.ledger.ReleaseTx(ctx, tx, b.TicketID, b.ID)
	})
	if err != nil {
		return err
	}
	if ticketID != 0 {
		c.ledger.RefreshAvailability(ctx, ticketID)
	}
	log.Printf("[payments] payment failed for ref %s: %s\n", providerRef, reason)
	return nil
}

// Refund returns money for a paid booking. Refunds accumulate against the
// captured amount and can never exceed it. A refund that exhausts the
// capture moves the booking to refunded and restocks its seats; a partial
// one leaves the booking valid. A checked-in booking can still be refunded,
// but its seats were used and never go back on sale.
func (c *Coordinator) Refund(ctx context.Context, input types.RefundInput) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	amount, err := utils.ParsePrice(input.Amount)
	if err != nil {
		return err
	}
	if amount.IsZero() {
		return types.NewError(types.ErrInvalidRefundAmount, "refund amount must be positive")
	}

	// Reserve the amount against the capture under the booking row lock
	// before talking to the provider, so a concurrent request for the same
	// money is rejected here instead of refunded twice.
	var attempt *models.Payment
	err = c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		b, err := c.bookings.FindByIDForUpdate(ctx, tx, input.BookingID)
		if err != nil {
			return notFoundOr(err, "booking %d not found", input.BookingID)
		}
		if b.PaymentStatus != types.PAYMENT_PAID {
			return types.NewError(types.ErrRefundNotAllowed, "booking %d is not paid", input.BookingID)
		}
		attempt, err = c.payments.FindCompletedByBookingID(ctx, tx, input.BookingID)
		if err != nil {
			return notFoundOr(err, "no settled payment for booking %d", input.BookingID)
		}
		refundable := attempt.Amount.Sub(attempt.RefundedAmount)
		if amount.GreaterThan(refundable) {
			return types.NewError(types.ErrInvalidRefundAmount, "refund %s exceeds the remaining refundable %s of the captured %s", amount.String(), refundable.String(), attempt.Amount.String())
		}
		return c.payments.Updates(ctx, tx, attempt.ID, map[string]any{
			"refunded_amount": attempt.RefundedAmount.Add(amount),
		})
	})
	if err != nil {
		return err
	}

	if _, err := c.provider.Refund(ctx, *attempt.ProviderRef, amount, attempt.Currency); err != nil {
		// Hand the reserved amount back so a later attempt is not blocked
		// by money the provider never moved.
		rbErr := c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
			if _, lockErr := c.bookings.FindByIDForUpdate(ctx, tx, input.BookingID); lockErr != nil {
				return lockErr
			}
			return c.payments.Updates(ctx, tx, attempt.ID, map[string]any{
				"refunded_amount": attempt.RefundedAmount,
			})
		})
		if rbErr != nil {
			log.Printf("[payments] could not unreserve refund %s on attempt %s: %s\n", amount.String(), attempt.ID, rbErr.Error())
		}
		return err
	}

	now := c.Now()
	full := attempt.RefundedAmount.Add(amount).Equal(attempt.Amount)
	var ticketID uint
	err = c.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		b, err := c.bookings.FindByIDForUpdate(ctx, tx, input.BookingID)
		if err != nil {
			return err
		}
		if b.PaymentStatus != types.PAYMENT_PAID {
			return types.NewError(types.ErrRefundNotAllowed, "booking %d is no longer paid", input.BookingID)
		}
		fields := map[string]any{
			"refunded_at":   now,
			"refund_reason": input.Reason,
		}
		if full {
			fields["status"] = types.TRANSACTION_REFUNDED
		}
		if err := c.payments.Updates(ctx, tx, attempt.ID, fields); err != nil {
			return err
		}
		if !full {
			return nil
		}
		err = c.paymentFSM.Transition(b.PaymentStatus, types.PAYMENT_REFUNDED, func(target types.PaymentStatus) error {
			return c.bookings.UpdatePaymentStatus(ctx, tx, b.ID, target)
		})
		if err != nil {
			return err
		}
		err = c.bookingFSM.Transition(b.Status, types.BOOKING_REFUNDED, func(target types.BookingStatus) error {
			return c.bookings.UpdateStatus(ctx, tx, b.ID, target)
		})
		if err != nil {
			return err
		}
		if b.CheckedIn() {
			return nil
		}
		ticketID = b.TicketID
		return c.ledger.RestockTx(ctx, tx, b.TicketID, b.Qty)
	})
	if err != nil {
		return err
	}
	if ticketID != 0 {
		c.ledger.RefreshAvailability(ctx, ticketID)
	}
	log.Printf("[payments] refunded %s for booking %d (full=%t)\n", amount.String(), input.BookingID, full)
	return nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewError(types.ErrNotFound, format, args...)
	}
	return err
}

package booking

import (
	"context"
	"testing"
	"time"

	"etix/src/ledger"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/repository/fakes"
	"etix/src/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine       *Engine
	ledger       *ledger.Ledger
	events       *fakes.EventStore
	tickets      *fakes.TicketStore
	bookings     *fakes.BookingStore
	reservations *fakes.ReservationStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	maxPerOrder := uint(4)
	event := &models.Event{
		ID:        1,
		Title:     "Summer Jam",
		Name:      "summer-jam",
		Status:    types.EVENT_PUBLISHED,
		StartTime: clock.Add(2 * time.Hour),
		EndTime:   clock.Add(5 * time.Hour),
	}
	ticket := &models.Ticket{
		ID:          1,
		EventID:     1,
		Name:        "General Admission",
		Status:      types.TICKET_ACTIVE,
		Price:       decimal.NewFromInt(25),
		Currency:    "USD",
		Qty:         10,
		Remaining:   10,
		MaxPerOrder: &maxPerOrder,
	}
	f := &fixture{
		events:       fakes.NewEventStore(event),
		tickets:      fakes.NewTicketStore(ticket),
		bookings:     fakes.NewBookingStore(),
		reservations: fakes.NewReservationStore(),
	}
	repo := &repository.Repository{
		Tx:           &fakes.TxRunner{},
		Events:       f.events,
		Tickets:      f.tickets,
		Bookings:     f.bookings,
		Reservations: f.reservations,
	}
	f.ledger = ledger.New(repo, nil)
	f.engine = NewEngine(repo, f.ledger)
	f.engine.Now = func() time.Time { return clock }
	return f
}

func (f *fixture) createBooking(t *testing.T, qty uint) *models.Booking {
	t.Helper()
	b, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: qty,
	})
	require.NoError(t, err)
	return b
}

// confirmPaid short-circuits the payment flow for tests that start from a
// confirmed, paid booking.
func (f *fixture) confirmPaid(t *testing.T, b *models.Booking) {
	t.Helper()
	f.bookings.Bookings[b.ID].Status = types.BOOKING_CONFIRMED
	f.bookings.Bookings[b.ID].PaymentStatus = types.PAYMENT_PAID
	require.NoError(t, f.ledger.ConsumeTx(context.Background(), nil, b.ID))
}

func remaining(t *testing.T, f *fixture) uint {
	t.Helper()
	ticket, err := f.tickets.FindByID(context.Background(), 1)
	require.NoError(t, err)
	return ticket.Remaining
}

func TestCreateReservesSeats(t *testing.T) {
	f := newFixture(t)

	b := f.createBooking(t, 2)

	assert.Equal(t, types.BOOKING_PENDING, b.Status)
	assert.Equal(t, types.PAYMENT_PENDING, b.PaymentStatus)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, uint(8), remaining(t, f))

	rows := f.reservations.ByBooking(b.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, types.RESERVATION_RESERVED, rows[0].Status)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 0,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestCreateRejectsTicketFromAnotherEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 2, TicketID: 1, Qty: 1,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestCreateRejectsUnpublishedEvent(t *testing.T) {
	f := newFixture(t)
	f.events.Events[1].Status = types.EVENT_DRAFT

	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 1,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotAvailable, types.CodeOf(err))
}

func TestCreateRejectsPausedTicket(t *testing.T) {
	f := newFixture(t)
	f.tickets.Tickets[1].Status = types.TICKET_PAUSED

	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 1,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotAvailable, types.CodeOf(err))
	assert.Equal(t, uint(10), remaining(t, f))
}

func TestCreateRejectsClosedSalesWindow(t *testing.T) {
	f := newFixture(t)
	salesEnd := clock.Add(-time.Minute)
	f.tickets.Tickets[1].SalesEnd = &salesEnd

	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 1,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrSalesEnded, types.CodeOf(err))
}

func TestCreateRejectsEndedEvent(t *testing.T) {
	f := newFixture(t)
	f.events.Events[1].EndTime = clock.Add(-time.Hour)

	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 1,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrEventEnded, types.CodeOf(err))
}

func TestCreateEnforcesMaxPerOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 5,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrExceedsMaxPerOrder, types.CodeOf(err))
}

func TestCreateFailsWhenSoldOut(t *testing.T) {
	f := newFixture(t)
	f.tickets.Tickets[1].Remaining = 1

	_, err := f.engine.Create(context.Background(), types.CreateBookingInput{
		UserID: 9, EventID: 1, TicketID: 1, Qty: 2,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrExceedsCapacity, types.CodeOf(err))
	assert.Equal(t, uint(1), remaining(t, f))
}

func TestCancelReturnsSeats(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 3)
	require.Equal(t, uint(7), remaining(t, f))

	require.NoError(t, f.engine.Cancel(context.Background(), b.ID))

	stored := f.bookings.Bookings[b.ID]
	assert.Equal(t, types.BOOKING_CANCELED, stored.Status)
	assert.Equal(t, types.PAYMENT_CANCELED, stored.PaymentStatus)
	assert.Equal(t, uint(10), remaining(t, f))

	rows := f.reservations.ByBooking(b.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, types.RESERVATION_RELEASED, rows[0].Status)
}

func TestCancelRejectsRepeat(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 3)

	require.NoError(t, f.engine.Cancel(context.Background(), b.ID))

	err := f.engine.Cancel(context.Background(), b.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrCancellationNotAllowed, types.CodeOf(err))
	assert.Equal(t, uint(10), remaining(t, f), "replayed cancel must not inflate the pool")
}

func TestCancelAfterFailedPaymentCancelsBoth(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 2)
	f.bookings.Bookings[b.ID].PaymentStatus = types.PAYMENT_FAILED

	require.NoError(t, f.engine.Cancel(context.Background(), b.ID))

	stored := f.bookings.Bookings[b.ID]
	assert.Equal(t, types.BOOKING_CANCELED, stored.Status)
	assert.Equal(t, types.PAYMENT_CANCELED, stored.PaymentStatus)
	assert.Equal(t, uint(10), remaining(t, f))
}

func TestCancelRejectsPaidBooking(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.confirmPaid(t, b)

	err := f.engine.Cancel(context.Background(), b.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrCancellationNotAllowed, types.CodeOf(err))
}

func TestCancelRejectsAfterEventStart(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.events.Events[1].StartTime = clock.Add(-time.Minute)

	err := f.engine.Cancel(context.Background(), b.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrCancellationNotAllowed, types.CodeOf(err))
	assert.Equal(t, uint(9), remaining(t, f), "seats stay taken")
}

func TestCheckInWindow(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.confirmPaid(t, b)
	ctx := context.Background()

	// Doors not open yet.
	err := f.engine.CheckIn(ctx, b.ID, 77)
	require.Error(t, err)
	assert.Equal(t, types.ErrCheckInNotAllowed, types.CodeOf(err))

	// Inside the event window.
	f.engine.Now = func() time.Time { return clock.Add(3 * time.Hour) }
	require.NoError(t, f.engine.CheckIn(ctx, b.ID, 77))
	stored := f.bookings.Bookings[b.ID]
	require.NotNil(t, stored.CheckedInAt)
	assert.Equal(t, uint(77), *stored.CheckedInBy)

	// Scanning the same pass twice.
	err = f.engine.CheckIn(ctx, b.ID, 77)
	require.Error(t, err)
	assert.Equal(t, types.ErrAlreadyCheckedIn, types.CodeOf(err))
}

func TestCheckInRejectsEndedEvent(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.confirmPaid(t, b)
	f.engine.Now = func() time.Time { return clock.Add(6 * time.Hour) }

	err := f.engine.CheckIn(context.Background(), b.ID, 77)
	require.Error(t, err)
	assert.Equal(t, types.ErrEventEnded, types.CodeOf(err))
}

func TestCheckInRequiresConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.engine.Now = func() time.Time { return clock.Add(3 * time.Hour) }

	err := f.engine.CheckIn(context.Background(), b.ID, 77)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidStatus, types.CodeOf(err))
}

func TestRevertCheckIn(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	f.confirmPaid(t, b)
	ctx := context.Background()

	err := f.engine.RevertCheckIn(ctx, b.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotCheckedIn, types.CodeOf(err))

	f.engine.Now = func() time.Time { return clock.Add(3 * time.Hour) }
	require.NoError(t, f.engine.CheckIn(ctx, b.ID, 77))
	require.NoError(t, f.engine.RevertCheckIn(ctx, b.ID))

	stored := f.bookings.Bookings[b.ID]
	assert.Nil(t, stored.CheckedInAt)
	assert.Nil(t, stored.CheckedInBy)
}

func TestTransferLifecycle(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 2)
	f.confirmPaid(t, b)
	ctx := context.Background()

	code, err := f.engine.Transfer(ctx, b.ID, 9, 21)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	stored := f.bookings.Bookings[b.ID]
	assert.Equal(t, types.TRANSFER_PENDING, stored.TransferStatus)
	require.NotNil(t, stored.TransferCode)

	// Only the addressee can redeem.
	_, err = f.engine.AcceptTransfer(ctx, code, 33)
	require.Error(t, err)
	assert.Equal(t, types.ErrTransferNotAllowed, types.CodeOf(err))

	accepted, err := f.engine.AcceptTransfer(ctx, code, 21)
	require.NoError(t, err)
	assert.Equal(t, uint(21), accepted.UserID)
	assert.Equal(t, types.TRANSFER_ACCEPTED, accepted.TransferStatus)

	stored = f.bookings.Bookings[b.ID]
	assert.Nil(t, stored.TransferCode, "the code is single use")
	assert.NotNil(t, stored.TransferCompletedAt)

	// Redeeming again finds nothing.
	_, err = f.engine.AcceptTransfer(ctx, code, 21)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.CodeOf(err))
}

func TestTransferGuards(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t, 1)
	ctx := context.Background()

	// Pending bookings cannot move.
	_, err := f.engine.Transfer(ctx, b.ID, 9, 21)
	require.Error(t, err)
	assert.Equal(t, types.ErrTransferNotAllowed, types.CodeOf(err))

	f.confirmPaid(t, b)

	// Only the holder can initiate.
	_, err = f.engine.Transfer(ctx, b.ID, 33, 21)
	require.Error(t, err)
	assert.Equal(t, types.ErrTransferNotAllowed, types.CodeOf(err))

	// Not after admission.
	f.engine.Now = func() time.Time { return clock.Add(3 * time.Hour) }
	require.NoError(t, f.engine.CheckIn(ctx, b.ID, 77))
	f.engine.Now = func() time.Time { return clock }
	_, err = f.engine.Transfer(ctx, b.ID, 9, 21)
	require.Error(t, err)
	assert.Equal(t, types.ErrTransferNotAllowed, types.CodeOf(err))
}

func TestExpireSweepsStalePendingBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.createBooking(t, 2)
	f.bookings.Bookings[stale.ID].CreatedAt = clock.Add(-2 * time.Hour)

	fresh := f.createBooking(t, 1)
	f.bookings.Bookings[fresh.ID].CreatedAt = clock.Add(-5 * time.Minute)

	inFlight := f.createBooking(t, 1)
	f.bookings.Bookings[inFlight.ID].CreatedAt = clock.Add(-2 * time.Hour)
	f.bookings.Bookings[inFlight.ID].PaymentStatus = types.PAYMENT_PROCESSING

	require.Equal(t, uint(6), remaining(t, f))

	reaped, err := f.engine.Expire(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	assert.Equal(t, types.BOOKING_CANCELED, f.bookings.Bookings[stale.ID].Status)
	assert.Equal(t, types.PAYMENT_CANCELED, f.bookings.Bookings[stale.ID].PaymentStatus)
	assert.Equal(t, types.BOOKING_PENDING, f.bookings.Bookings[fresh.ID].Status)
	assert.Equal(t, types.BOOKING_PENDING, f.bookings.Bookings[inFlight.ID].Status)

	assert.Equal(t, uint(8), remaining(t, f), "only the stale booking's seats return")
}

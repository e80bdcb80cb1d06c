package reaper

import (
	"testing"
	"time"

	"etix/src/booking"
	"etix/src/ledger"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/repository/fakes"
	"etix/src/types"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*booking.Engine, *fakes.BookingStore, *fakes.TicketStore) {
	t.Helper()
	event := &models.Event{
		ID:        1,
		Title:     "Summer Jam",
		Status:    types.EVENT_PUBLISHED,
		StartTime: clock.Add(2 * time.Hour),
		EndTime:   clock.Add(5 * time.Hour),
	}
	ticket := &models.Ticket{
		ID:        1,
		EventID:   1,
		Name:      "General Admission",
		Status:    types.TICKET_ACTIVE,
		Price:     decimal.NewFromInt(25),
		Currency:  "USD",
		Qty:       10,
		Remaining: 7,
	}
	stale := &models.Booking{
		ID:            1,
		UserID:        9,
		EventID:       1,
		TicketID:      1,
		Qty:           3,
		Status:        types.BOOKING_PENDING,
		PaymentStatus: types.PAYMENT_PENDING,
	}
	stale.CreatedAt = clock.Add(-2 * time.Hour)

	bookings := fakes.NewBookingStore(stale)
	tickets := fakes.NewTicketStore(ticket)
	reservations := fakes.NewReservationStore()
	require.NoError(t, reservations.Create(nil, nil, &models.Reservation{
		TicketID:  1,
		BookingID: 1,
		Qty:       3,
		Status:    types.RESERVATION_RESERVED,
	}))

	repo := &repository.Repository{
		Tx:           &fakes.TxRunner{},
		Events:       fakes.NewEventStore(event),
		Tickets:      tickets,
		Bookings:     bookings,
		Reservations: reservations,
	}
	engine := booking.NewEngine(repo, ledger.New(repo, nil))
	engine.Now = func() time.Time { return clock }
	return engine, bookings, tickets
}

func TestSweepExpiresStaleBookings(t *testing.T) {
	engine, bookings, tickets := newTestEngine(t)
	rdb, mock := redismock.NewClientMock()
	r := New(engine, rdb)

	mock.ExpectSetNX(lockKey, "1", r.interval).SetVal(true)
	mock.ExpectDel(lockKey).SetVal(1)

	r.Sweep()

	assert.Equal(t, types.BOOKING_CANCELED, bookings.Bookings[1].Status)
	ticket, _ := tickets.FindByID(nil, 1)
	assert.Equal(t, uint(10), ticket.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepSkipsWhenAnotherInstanceHoldsLock(t *testing.T) {
	engine, bookings, _ := newTestEngine(t)
	rdb, mock := redismock.NewClientMock()
	r := New(engine, rdb)

	mock.ExpectSetNX(lockKey, "1", r.interval).SetVal(false)

	r.Sweep()

	assert.Equal(t, types.BOOKING_PENDING, bookings.Bookings[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepRunsWithoutRedis(t *testing.T) {
	engine, bookings, _ := newTestEngine(t)
	r := New(engine, nil)

	r.Sweep()

	assert.Equal(t, types.BOOKING_CANCELED, bookings.Bookings[1].Status)
}

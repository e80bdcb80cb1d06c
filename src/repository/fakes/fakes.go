// Package fakes provides in-memory repository implementations for service
// tests. The stores are mutex-guarded so concurrency tests can hammer them
// the way parallel transactions hammer the real tables.
package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"etix/src/models"
	"etix/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TxRunner satisfies repository.TxRunner without a database: the closure
// runs with a nil handle, which every fake store ignores.
type TxRunner struct {
	Err error
	// FailAfter makes the run return Err after fn succeeded, to simulate
	// a commit failure.
	FailAfter bool
}

func (f *TxRunner) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.Err != nil && !f.FailAfter {
		return f.Err
	}
	if err := fn(nil); err != nil {
		return err
	}
	return f.Err
}

type TicketStore struct {
	mu      sync.Mutex
	Tickets map[uint]*models.Ticket
}

func NewTicketStore(tickets ...*models.Ticket) *TicketStore {
	s := &TicketStore{Tickets: map[uint]*models.Ticket{}}
	for _, t := range tickets {
		s.Tickets[t.ID] = t
	}
	return s
}

func (s *TicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == 0 {
		ticket.ID = uint(len(s.Tickets) + 1)
	}
	s.Tickets[ticket.ID] = ticket
	return nil
}

func (s *TicketStore) FindByID(ctx context.Context, id uint) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tickets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TicketStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Ticket, error) {
	return s.FindByID(ctx, id)
}

func (s *TicketStore) DecrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tickets[id]
	if !ok || t.Remaining < qty {
		return 0, nil
	}
	t.Remaining -= qty
	return 1, nil
}

func (s *TicketStore) IncrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tickets[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Remaining += qty
	if t.Remaining > t.Qty {
		t.Remaining = t.Qty
	}
	return nil
}

func (s *TicketStore) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tickets[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Status = status
	return nil
}

type EventStore struct {
	mu     sync.Mutex
	Events map[uint]*models.Event
}

func NewEventStore(events ...*models.Event) *EventStore {
	s := &EventStore{Events: map[uint]*models.Event{}}
	for _, e := range events {
		s.Events[e.ID] = e
	}
	return s
}

func (s *EventStore) Create(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == 0 {
		event.ID = uint(len(s.Events) + 1)
	}
	s.Events[event.ID] = event
	return nil
}

func (s *EventStore) FindByID(ctx context.Context, id uint) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.Events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *EventStore) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.Events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.Status = status
	return nil
}

type BookingStore struct {
	mu       sync.Mutex
	nextID   uint
	Bookings map[uint]*models.Booking
}

func NewBookingStore(bookings ...*models.Booking) *BookingStore {
	s := &BookingStore{Bookings: map[uint]*models.Booking{}}
	for _, b := range bookings {
		s.Bookings[b.ID] = b
		if b.ID > s.nextID {
			s.nextID = b.ID
		}
	}
	return s
}

func (s *BookingStore) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == 0 {
		s.nextID++
		booking.ID = s.nextID
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	s.Bookings[booking.ID] = booking
	return nil
}

func (s *BookingStore) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *BookingStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	return s.FindByID(ctx, id)
}

func (s *BookingStore) FindByTransferCode(ctx context.Context, tx *gorm.DB, code string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.Bookings {
		if b.TransferCode != nil && *b.TransferCode == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *BookingStore) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Status = status
	return nil
}

func (s *BookingStore) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, id uint, status types.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.PaymentStatus = status
	return nil
}

func (s *BookingStore) SetCheckedIn(ctx context.Context, tx *gorm.DB, id uint, at time.Time, by uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.CheckedInAt = &at
	b.CheckedInBy = &by
	return nil
}

func (s *BookingStore) ClearCheckedIn(ctx context.Context, tx *gorm.DB, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.CheckedInAt = nil
	b.CheckedInBy = nil
	return nil
}

func (s *BookingStore) Updates(ctx context.Context, tx *gorm.DB, id uint, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, val := range fields {
		switch key {
		case "user_id":
			b.UserID = val.(uint)
		case "transfer_status":
			b.TransferStatus = val.(types.TransferStatus)
		case "transfer_code":
			if val == nil {
				b.TransferCode = nil
			} else {
				code := val.(string)
				b.TransferCode = &code
			}
		case "transfer_from_user_id":
			from := val.(uint)
			b.TransferFromUserID = &from
		case "transfer_to_user_id":
			to := val.(uint)
			b.TransferToUserID = &to
		case "transfer_initiated_at":
			at := val.(time.Time)
			b.TransferInitiatedAt = &at
		case "transfer_completed_at":
			at := val.(time.Time)
			b.TransferCompletedAt = &at
		}
	}
	return nil
}

func (s *BookingStore) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.Bookings {
		if b.Status == types.BOOKING_PENDING && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ReservationStore struct {
	mu           sync.Mutex
	Reservations []*models.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{}
}

func (s *ReservationStore) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reservation.ID == 0 {
		reservation.ID = uint(len(s.Reservations) + 1)
	}
	s.Reservations = append(s.Reservations, reservation)
	return nil
}

func (s *ReservationStore) MarkByBooking(ctx context.Context, tx *gorm.DB, bookingID uint, status types.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Reservations {
		if r.BookingID == bookingID && r.Status == types.RESERVATION_RESERVED {
			r.Status = status
		}
	}
	return nil
}

func (s *ReservationStore) SumActiveByTicket(ctx context.Context, tx *gorm.DB, ticketID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.Reservations {
		if r.TicketID == ticketID && r.Status == types.RESERVATION_RESERVED {
			total += int64(r.Qty)
		}
	}
	return total, nil
}

func (s *ReservationStore) ActiveQtyByBooking(ctx context.Context, tx *gorm.DB, bookingID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.Reservations {
		if r.BookingID == bookingID && r.Status == types.RESERVATION_RESERVED {
			total += int64(r.Qty)
		}
	}
	return total, nil
}

// ByBooking returns copies of every reservation row for the booking.
func (s *ReservationStore) ByBooking(bookingID uint) []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, r := range s.Reservations {
		if r.BookingID == bookingID {
			out = append(out, *r)
		}
	}
	return out
}

type PaymentStore struct {
	mu       sync.Mutex
	Payments map[uuid.UUID]*models.Payment
}

func NewPaymentStore(payments ...*models.Payment) *PaymentStore {
	s := &PaymentStore{Payments: map[uuid.UUID]*models.Payment{}}
	for _, p := range payments {
		s.Payments[p.ID] = p
	}
	return s
}

func (s *PaymentStore) Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	s.Payments[payment.ID] = payment
	return nil
}

func (s *PaymentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PaymentStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	return s.FindByID(ctx, id)
}

func (s *PaymentStore) FindByProviderRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Payments {
		if p.ProviderRef != nil && *p.ProviderRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *PaymentStore) FindCompletedByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Payment
	for _, p := range s.Payments {
		if p.BookingID != bookingID || p.Status != types.TRANSACTION_COMPLETED {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *PaymentStore) Updates(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, val := range fields {
		switch key {
		case "status":
			p.Status = val.(types.TransactionStatus)
		case "paid_at":
			at := val.(time.Time)
			p.PaidAt = &at
		case "refunded_at":
			at := val.(time.Time)
			p.RefundedAt = &at
		case "failed_reason":
			reason := val.(string)
			p.FailedReason = &reason
		case "refund_reason":
			reason := val.(string)
			p.RefundReason = &reason
		case "refunded_amount":
			p.RefundedAmount = val.(decimal.Decimal)
		}
	}
	return nil
}

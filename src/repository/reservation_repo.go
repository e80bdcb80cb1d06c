package repository

import (
	"context"

	"etix/src/models"
	"etix/src/types"

	"gorm.io/gorm"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error
	// MarkByBooking moves every active reservation of a booking to the
	// given terminal status. Released and consumed rows are kept for audit.
	MarkByBooking(ctx context.Context, tx *gorm.DB, bookingID uint, status types.ReservationStatus) error
	SumActiveByTicket(ctx context.Context, tx *gorm.DB, ticketID uint) (int64, error)
	// ActiveQtyByBooking totals the booking's reserved seats. Zero after a
	// release or consume, which makes the release path idempotent.
	ActiveQtyByBooking(ctx context.Context, tx *gorm.DB, bookingID uint) (int64, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *reservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	return r.conn(tx).WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepository) MarkByBooking(ctx context.Context, tx *gorm.DB, bookingID uint, status types.ReservationStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Reservation{}).
		Where("booking_id = ? AND status = ?", bookingID, types.RESERVATION_RESERVED).
		Update("status", status).
		Error
}

func (r *reservationRepository) ActiveQtyByBooking(ctx context.Context, tx *gorm.DB, bookingID uint) (int64, error) {
	var total int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Reservation{}).
		Where("booking_id = ? AND status = ?", bookingID, types.RESERVATION_RESERVED).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).
		Error
	return total, err
}

func (r *reservationRepository) SumActiveByTicket(ctx context.Context, tx *gorm.DB, ticketID uint) (int64, error) {
	var total int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Reservation{}).
		Where("ticket_id = ? AND status = ?", ticketID, types.RESERVATION_RESERVED).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).
		Error
	return total, err
}

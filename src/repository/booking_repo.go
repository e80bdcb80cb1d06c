package repository

import (
	"context"
	"time"

	"etix/src/models"
	"etix/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error)
	FindByTransferCode(ctx context.Context, tx *gorm.DB, code string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.BookingStatus) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, id uint, status types.PaymentStatus) error
	SetCheckedIn(ctx context.Context, tx *gorm.DB, id uint, at time.Time, by uint) error
	ClearCheckedIn(ctx context.Context, tx *gorm.DB, id uint) error
	Updates(ctx context.Context, tx *gorm.DB, id uint, fields map[string]any) error
	// FindExpiredPending lists pending bookings created before cutoff.
	// The reaper sweeps these.
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return r.conn(tx).WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Ticket").
		Preload("Event").
		First(&booking, id).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, id).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByTransferCode(ctx context.Context, tx *gorm.DB, code string) (*models.Booking, error) {
	var booking models.Booking
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_code = ?", code).
		First(&booking).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.BookingStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *bookingRepository) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, id uint, status types.PaymentStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("payment_status", status).
		Error
}

func (r *bookingRepository) SetCheckedIn(ctx context.Context, tx *gorm.DB, id uint, at time.Time, by uint) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"checked_in_at": at,
			"checked_in_by": by,
		}).
		Error
}

func (r *bookingRepository) ClearCheckedIn(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"checked_in_at": nil,
			"checked_in_by": nil,
		}).
		Error
}

func (r *bookingRepository) Updates(ctx context.Context, tx *gorm.DB, id uint, fields map[string]any) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *bookingRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", types.BOOKING_PENDING, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&bookings).
		Error
	return bookings, err
}

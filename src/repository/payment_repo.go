package repository

import (
	"context"

	"etix/src/models"
	"etix/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error)
	FindByProviderRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error)
	// FindCompletedByBookingID returns the successful attempt for a
	// booking, for refunds against the captured amount.
	FindCompletedByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error)
	Updates(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	return r.conn(tx).WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByProviderRef(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_ref = ?", ref).
		First(&payment).
		Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindCompletedByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.conn(tx).WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, types.TRANSACTION_COMPLETED).
		Order("created_at desc").
		First(&payment).
		Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Updates(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

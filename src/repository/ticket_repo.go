package repository

import (
	"context"

	"etix/src/models"
	"etix/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uint) (*models.Ticket, error)
	// FindByIDForUpdate takes a row lock, serializing concurrent
	// reservations against the same ticket type.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Ticket, error)
	// DecrementRemaining performs the guarded decrement and reports how
	// many rows matched; zero means the pool had fewer than qty left.
	DecrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) (int64, error)
	// IncrementRemaining adds qty back, capped at the ticket's capacity.
	IncrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.TicketStatus) error
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ticket, id).
		Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) DecrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND remaining >= ?", id, qty).
		UpdateColumn("remaining", gorm.Expr("remaining - ?", qty))
	return res.RowsAffected, res.Error
}

func (r *ticketRepository) IncrementRemaining(ctx context.Context, tx *gorm.DB, id uint, qty uint) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		UpdateColumn("remaining", gorm.Expr("LEAST(remaining + ?, qty)", qty)).
		Error
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.TicketStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

package repository

import (
	"context"

	"etix/src/models"
	"etix/src/types"

	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uint) (*models.Event, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.EventStatus) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) FindByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status types.EventStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

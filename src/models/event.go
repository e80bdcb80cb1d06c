package models

import (
	"etix/src/types"
	"time"
)

type Event struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	Title       string            `json:"title,omitempty"`
	Name        string            `gorm:"uniqueIndex" json:"name,omitempty"`
	About       *string           `json:"about,omitempty"`
	Location    string            `json:"location,omitempty"`
	StartTime   time.Time         `json:"start_time,omitempty"`
	EndTime     time.Time         `json:"end_time,omitempty"`
	Status      types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	OrganizerID uint              `json:"organizer,omitempty"`

	Tickets []Ticket `json:"tickets,omitempty"`

	types.Timestamps
}

// Ended reports whether admissions are over: bookings against an ended
// event are rejected, check-ins are accepted until this moment.
func (e *Event) Ended(now time.Time) bool {
	return !now.Before(e.EndTime)
}

func (e *Event) Started(now time.Time) bool {
	return !now.Before(e.StartTime)
}

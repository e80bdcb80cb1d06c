package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_CANCELED  EventStatus = "cancelled"
)

type TicketStatus string

const (
	TICKET_DRAFT     TicketStatus = "draft"
	TICKET_ACTIVE    TicketStatus = "active"
	TICKET_PAUSED    TicketStatus = "paused"
	TICKET_PUBLISHED TicketStatus = "published"
	TICKET_ARCHIVED  TicketStatus = "archived"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_CANCELED  BookingStatus = "cancelled"
	BOOKING_REFUNDED  BookingStatus = "refunded"
)

type PaymentStatus string

const (
	PAYMENT_PENDING    PaymentStatus = "pending"
	PAYMENT_PROCESSING PaymentStatus = "processing"
	PAYMENT_PAID       PaymentStatus = "paid"
	PAYMENT_FAILED     PaymentStatus = "failed"
	PAYMENT_REFUNDED   PaymentStatus = "refunded"
	PAYMENT_CANCELED   PaymentStatus = "cancelled"
)

// TransactionStatus tracks a single payment attempt, as opposed to
// PaymentStatus which is the booking's overall payment sub-state.
type TransactionStatus string

const (
	TRANSACTION_PENDING    TransactionStatus = "pending"
	TRANSACTION_PROCESSING TransactionStatus = "processing"
	TRANSACTION_COMPLETED  TransactionStatus = "completed"
	TRANSACTION_FAILED     TransactionStatus = "failed"
	TRANSACTION_REFUNDED   TransactionStatus = "refunded"
)

type ReservationStatus string

const (
	RESERVATION_RESERVED ReservationStatus = "reserved"
	RESERVATION_RELEASED ReservationStatus = "released"
	RESERVATION_CONSUMED ReservationStatus = "consumed"
)

type TransferStatus string

const (
	TRANSFER_NONE     TransferStatus = "none"
	TRANSFER_PENDING  TransferStatus = "pending"
	TRANSFER_ACCEPTED TransferStatus = "accepted"
)

type CreateBookingInput struct {
	UserID   uint `json:"user" validate:"required"`
	EventID  uint `json:"event" validate:"required"`
	TicketID uint `json:"ticket" validate:"required"`
	Qty      uint `json:"qty" validate:"required,gte=1"`
}

type CreateEventInput struct {
	Title       string `json:"title" validate:"required"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	OrganizerID uint   `json:"organizer" validate:"required"`
}

type CreateTicketInput struct {
	EventID     uint       `json:"event" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Price       string     `json:"price" validate:"required"`
	Currency    string     `json:"currency" validate:"required,len=3"`
	Qty         uint       `json:"qty" validate:"required,gte=1"`
	MaxPerOrder *uint      `json:"max_per_order,omitempty" validate:"omitempty,gte=1"`
	SalesStart  *time.Time `json:"sales_start,omitempty"`
	SalesEnd    *time.Time `json:"sales_end,omitempty"`
}

type RefundInput struct {
	BookingID uint   `json:"booking" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}

// Package catalog manages the event and ticket lifecycles that feed the
// booking engine: events move draft to published to completed, tickets open,
// pause, and archive, and every status write goes through the fsm tables.
package catalog

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"etix/src/config"
	"etix/src/fsm"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/types"
	"etix/src/utils"

	"gorm.io/gorm"
)

type Service struct {
	tx      repository.TxRunner
	events  repository.EventRepository
	tickets repository.TicketRepository

	eventFSM  fsm.Machine[types.EventStatus]
	ticketFSM fsm.Machine[types.TicketStatus]
}

func NewService(repo *repository.Repository) *Service {
	return &Service{
		tx:        repo.Tx,
		events:    repo.Events,
		tickets:   repo.Tickets,
		eventFSM:  fsm.New(fsm.EventTable),
		ticketFSM: fsm.New(fsm.TicketTable),
	}
}

// CreateEvent persists a draft event with a URL slug derived from its title.
func (s *Service) CreateEvent(ctx context.Context, input types.CreateEventInput) (*models.Event, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	start, err := time.Parse(config.TIME_PARSE_FORMAT, input.StartTime)
	if err != nil {
		return nil, types.WrapError(types.ErrValidation, err, "invalid start_time %q", input.StartTime)
	}
	end, err := time.Parse(config.TIME_PARSE_FORMAT, input.EndTime)
	if err != nil {
		return nil, types.WrapError(types.ErrValidation, err, "invalid end_time %q", input.EndTime)
	}
	if !end.After(start) {
		return nil, types.NewError(types.ErrValidation, "end_time must be after start_time")
	}
	event := &models.Event{
		Title:       input.Title,
		Name:        utils.EventSlug(input.Title),
		Location:    input.Location,
		StartTime:   start,
		EndTime:     end,
		Status:      types.EVENT_DRAFT,
		OrganizerID: input.OrganizerID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	log.Printf("[catalog] created event %d (%s)\n", event.ID, event.Name)
	return event, nil
}

// PublishEvent opens a draft event for booking.
func (s *Service) PublishEvent(ctx context.Context, eventID uint) error {
	return s.transitionEvent(ctx, eventID, types.EVENT_PUBLISHED)
}

// CompleteEvent closes out a published event.
func (s *Service) CompleteEvent(ctx context.Context, eventID uint) error {
	return s.transitionEvent(ctx, eventID, types.EVENT_COMPLETED)
}

// CancelEvent voids an event that will not run.
func (s *Service) CancelEvent(ctx context.Context, eventID uint) error {
	return s.transitionEvent(ctx, eventID, types.EVENT_CANCELED)
}

func (s *Service) transitionEvent(ctx context.Context, eventID uint, target types.EventStatus) error {
	return s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		event, err := s.events.FindByID(ctx, eventID)
		if err != nil {
			return notFoundOr(err, "event %d not found", eventID)
		}
		return s.eventFSM.Transition(event.Status, target, func(st types.EventStatus) error {
			return s.events.UpdateStatus(ctx, tx, eventID, st)
		})
	})
}

// CreateTicket persists a draft ticket type with its full capacity still in
// the pool. Nothing sells until the ticket is activated.
func (s *Service) CreateTicket(ctx context.Context, input types.CreateTicketInput) (*models.Ticket, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	price, err := utils.ParsePrice(input.Price)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.FindByID(ctx, input.EventID); err != nil {
		return nil, notFoundOr(err, "event %d not found", input.EventID)
	}
	ticket := &models.Ticket{
		EventID:     input.EventID,
		Name:        input.Name,
		Status:      types.TICKET_DRAFT,
		Price:       price,
		Currency:    strings.ToUpper(input.Currency),
		Qty:         input.Qty,
		Remaining:   input.Qty,
		MaxPerOrder: input.MaxPerOrder,
		SalesStart:  input.SalesStart,
		SalesEnd:    input.SalesEnd,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	log.Printf("[catalog] created ticket %d for event %d\n", ticket.ID, ticket.EventID)
	return ticket, nil
}

// ActivateTicket puts a draft or paused ticket on sale.
func (s *Service) ActivateTicket(ctx context.Context, ticketID uint) error {
	return s.transitionTicket(ctx, ticketID, types.TICKET_ACTIVE)
}

// PauseTicket suspends sales; reservations already held are untouched.
func (s *Service) PauseTicket(ctx context.Context, ticketID uint) error {
	return s.transitionTicket(ctx, ticketID, types.TICKET_PAUSED)
}

// ArchiveTicket retires the ticket type for good.
func (s *Service) ArchiveTicket(ctx context.Context, ticketID uint) error {
	return s.transitionTicket(ctx, ticketID, types.TICKET_ARCHIVED)
}

func (s *Service) transitionTicket(ctx context.Context, ticketID uint, target types.TicketStatus) error {
	return s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		ticket, err := s.tickets.FindByID(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket %d not found", ticketID)
		}
		return s.ticketFSM.Transition(ticket.Status, target, func(st types.TicketStatus) error {
			return s.tickets.UpdateStatus(ctx, tx, ticketID, st)
		})
	})
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewError(types.ErrNotFound, format, args...)
	}
	return err
}

package catalog

import (
	"context"
	"testing"
	"time"

	"etix/src/config"
	"etix/src/models"
	"etix/src/repository"
	"etix/src/repository/fakes"
	"etix/src/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service *Service
	events  *fakes.EventStore
	tickets *fakes.TicketStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:  fakes.NewEventStore(),
		tickets: fakes.NewTicketStore(),
	}
	repo := &repository.Repository{
		Tx:      &fakes.TxRunner{},
		Events:  f.events,
		Tickets: f.tickets,
	}
	f.service = NewService(repo)
	return f
}

func (f *fixture) createEvent(t *testing.T) *models.Event {
	t.Helper()
	event, err := f.service.CreateEvent(context.Background(), types.CreateEventInput{
		Title:       "Summer Jam 2026",
		Location:    "Riverside Park",
		StartTime:   clock.Add(48 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		EndTime:     clock.Add(53 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		OrganizerID: 5,
	})
	require.NoError(t, err)
	return event
}

func TestCreateEventSlugsTitle(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)

	assert.Equal(t, "summer-jam-2026", event.Name)
	assert.Equal(t, types.EVENT_DRAFT, event.Status)
	assert.True(t, event.StartTime.Equal(clock.Add(48*time.Hour)))
}

func TestCreateEventRejectsBadWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateEvent(context.Background(), types.CreateEventInput{
		Title:       "Backwards",
		StartTime:   clock.Add(5 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		EndTime:     clock.Add(2 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		OrganizerID: 5,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))

	_, err = f.service.CreateEvent(context.Background(), types.CreateEventInput{
		Title:       "Unparseable",
		StartTime:   "next tuesday",
		EndTime:     clock.Add(2 * time.Hour).Format(config.TIME_PARSE_FORMAT),
		OrganizerID: 5,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestEventLifecycle(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)
	ctx := context.Background()

	require.NoError(t, f.service.PublishEvent(ctx, event.ID))
	assert.Equal(t, types.EVENT_PUBLISHED, f.events.Events[event.ID].Status)

	require.NoError(t, f.service.CompleteEvent(ctx, event.ID))
	assert.Equal(t, types.EVENT_COMPLETED, f.events.Events[event.ID].Status)

	// Completed is terminal.
	err := f.service.PublishEvent(ctx, event.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrIllegalTransition, types.CodeOf(err))
}

func TestCompleteEventRequiresPublished(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)

	err := f.service.CompleteEvent(context.Background(), event.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrIllegalTransition, types.CodeOf(err))
}

func TestCreateTicketStartsDraftWithFullPool(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)

	ticket, err := f.service.CreateTicket(context.Background(), types.CreateTicketInput{
		EventID:  event.ID,
		Name:     "General Admission",
		Price:    "19.99",
		Currency: "usd",
		Qty:      100,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TICKET_DRAFT, ticket.Status)
	assert.Equal(t, uint(100), ticket.Remaining)
	assert.Equal(t, "USD", ticket.Currency)
	assert.True(t, ticket.Price.Equal(decimal.RequireFromString("19.99")))
}

func TestCreateTicketRejectsBadPrice(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)

	_, err := f.service.CreateTicket(context.Background(), types.CreateTicketInput{
		EventID:  event.ID,
		Name:     "General Admission",
		Price:    "-5",
		Currency: "usd",
		Qty:      10,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestCreateTicketRequiresEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateTicket(context.Background(), types.CreateTicketInput{
		EventID:  42,
		Name:     "Ghost",
		Price:    "10",
		Currency: "usd",
		Qty:      10,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.CodeOf(err))
}

func TestTicketLifecycle(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t)
	ctx := context.Background()

	ticket, err := f.service.CreateTicket(ctx, types.CreateTicketInput{
		EventID:  event.ID,
		Name:     "General Admission",
		Price:    "25",
		Currency: "usd",
		Qty:      10,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.ActivateTicket(ctx, ticket.ID))
	assert.Equal(t, types.TICKET_ACTIVE, f.tickets.Tickets[ticket.ID].Status)

	require.NoError(t, f.service.PauseTicket(ctx, ticket.ID))
	assert.Equal(t, types.TICKET_PAUSED, f.tickets.Tickets[ticket.ID].Status)

	require.NoError(t, f.service.ActivateTicket(ctx, ticket.ID))
	require.NoError(t, f.service.ArchiveTicket(ctx, ticket.ID))
	assert.Equal(t, types.TICKET_ARCHIVED, f.tickets.Tickets[ticket.ID].Status)

	// Archived is terminal.
	err = f.service.PauseTicket(ctx, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrIllegalTransition, types.CodeOf(err))
}

package tickets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTicketReserved  EventType = "ticket.reserved"
	EventTicketPurchased EventType = "ticket.purchased"
	EventTicketCancelled EventType = "ticket.cancelled"
	EventTicketExpired   EventType = "ticket.expired"
)

// TicketEvent is emitted after a lifecycle change has committed.
type TicketEvent struct {
	Type           EventType       `json:"type"`
	TicketID       uuid.UUID       `json:"ticket_id"`
	EventID        uuid.UUID       `json:"event_id"`
	TicketTypeID   uuid.UUID       `json:"ticket_type_id"`
	CustomerEmail  string          `json:"customer_email"`
	PreviousStatus Status          `json:"previous_status,omitempty"`
	Status         Status          `json:"status"`
	Price          decimal.Decimal `json:"price"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// EventPublisher delivers committed ticket events. Delivery is best effort and
// never affects the outcome of the operation that produced the event.
type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event TicketEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishTicketEvent(context.Context, TicketEvent) error { return nil }

func eventTypeFor(status Status) EventType {
	switch status {
	case StatusPurchased:
		return EventTicketPurchased
	case StatusCancelled:
		return EventTicketCancelled
	case StatusExpired:
		return EventTicketExpired
	}
	return EventTicketReserved
}

func newTicketEvent(t *Ticket, previous Status, at time.Time) TicketEvent {
	return TicketEvent{
		Type:           eventTypeFor(t.Status),
		TicketID:       t.ID,
		EventID:        t.EventID,
		TicketTypeID:   t.TicketTypeID,
		CustomerEmail:  t.CustomerEmail,
		PreviousStatus: previous,
		Status:         t.Status,
		Price:          t.Price,
		OccurredAt:     at,
	}
}

package notifications

import (
	"encoding/json"
	"time"

	"boxoffice/internal/tickets"

	"github.com/google/uuid"
)

const (
	messageVersion = "1.0"
	producerName   = "boxoffice-tickets"
)

// TicketEventMessage is the envelope written to the ticket events topic
type TicketEventMessage struct {
	MessageID uuid.UUID `json:"message_id"`
	Version   string    `json:"version"`
	Producer  string    `json:"producer"`
	CreatedAt time.Time `json:"created_at"`

	tickets.TicketEvent
}

func NewTicketEventMessage(event tickets.TicketEvent) *TicketEventMessage {
	return &TicketEventMessage{
		MessageID:   uuid.New(),
		Version:     messageVersion,
		Producer:    producerName,
		CreatedAt:   time.Now().UTC(),
		TicketEvent: event,
	}
}

// GetPartitionKey keeps every event of one ticket on one partition, in order
func (m *TicketEventMessage) GetPartitionKey() string {
	return m.TicketID.String()
}

func (m *TicketEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

package tickets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketType is the inventory ledger entry for one priced category of an event.
type TicketType struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventID           uuid.UUID       `gorm:"type:uuid;index;not null" json:"event_id"`
	Name              string          `gorm:"type:varchar(100);not null" json:"name"`
	Description       string          `gorm:"type:varchar(500)" json:"description"`
	Price             decimal.Decimal `gorm:"type:numeric(10,2);not null;check:chk_ticket_types_price,price >= 0.01" json:"price"`
	TotalQuantity     int             `gorm:"not null;check:chk_ticket_types_total,total_quantity > 0" json:"total_quantity"`
	AvailableQuantity int             `gorm:"not null;check:chk_ticket_types_available,available_quantity >= 0 AND available_quantity <= total_quantity" json:"available_quantity"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	// Version counts ledger adjustments; cached reads carry it so an older
	// snapshot never replaces a newer one.
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket is one sellable instance drawn from a TicketType.
type Ticket struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"event_id"`
	TicketTypeID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"ticket_type_id"`
	CustomerEmail    string          `gorm:"type:varchar(200);index;not null" json:"customer_email"`
	CustomerName     string          `gorm:"type:varchar(200);not null" json:"customer_name"`
	Status           Status          `gorm:"type:varchar(20);not null;check:status IN ('RESERVED', 'PURCHASED', 'CANCELLED', 'EXPIRED')" json:"status"`
	Price            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	ReservedAt       time.Time       `gorm:"not null" json:"reserved_at"`
	PurchasedAt      *time.Time      `json:"purchased_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	PaymentReference *string         `gorm:"type:varchar(200)" json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName sets the table name for TicketType
func (TicketType) TableName() string {
	return "ticket_types"
}

// TableName sets the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// IsSellable reports whether a new reservation may be taken against the type.
func (tt *TicketType) IsSellable() bool {
	return tt.IsActive && tt.AvailableQuantity > 0
}

// ReservationExpired reports whether a Reserved ticket is past its deadline at now.
// A deadline equal to now counts as expired.
func (t *Ticket) ReservationExpired(now time.Time) bool {
	return t.Status == StatusReserved && t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// apply writes the result of tr onto the ticket record.
func (t *Ticket) apply(tr Transition, now time.Time, paymentReference string) {
	t.Status = tr.To
	t.ExpiresAt = nil
	t.UpdatedAt = now

	switch tr.To {
	case StatusPurchased:
		t.PurchasedAt = &now
		ref := paymentReference
		t.PaymentReference = &ref
	case StatusCancelled:
		t.CancelledAt = &now
	}
}

// Availability is the read model returned by GetAvailability.
type Availability struct {
	TicketTypeID      uuid.UUID       `json:"ticket_type_id"`
	TicketTypeName    string          `json:"ticket_type_name"`
	AvailableQuantity int             `json:"available_quantity"`
	Price             decimal.Decimal `json:"price"`
	IsAvailable       bool            `json:"is_available"`
	Version           int64           `json:"version"`
}

func availabilityOf(tt *TicketType) *Availability {
	return &Availability{
		TicketTypeID:      tt.ID,
		TicketTypeName:    tt.Name,
		AvailableQuantity: tt.AvailableQuantity,
		Price:             tt.Price,
		IsAvailable:       tt.IsSellable(),
		Version:           tt.Version,
	}
}

// LedgerAudit compares the ledger counter against the ticket records it summarises.
type LedgerAudit struct {
	TicketTypeID      uuid.UUID `json:"ticket_type_id"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	HoldingTickets    int       `json:"holding_tickets"`
	Consistent        bool      `json:"consistent"`
}

package tickets

import "time"

type TicketResponse struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	TicketTypeID     string     `json:"ticket_type_id"`
	CustomerEmail    string     `json:"customer_email"`
	CustomerName     string     `json:"customer_name"`
	Status           string     `json:"status"`
	Price            string     `json:"price"`
	ReservedAt       time.Time  `json:"reserved_at"`
	PurchasedAt      *time.Time `json:"purchased_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
}

type TicketListResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Count   int              `json:"count"`
}

type TicketPageResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type AvailabilityResponse struct {
	TicketTypeID      string `json:"ticket_type_id"`
	TicketTypeName    string `json:"ticket_type_name"`
	AvailableQuantity int    `json:"available_quantity"`
	Price             string `json:"price"`
	IsAvailable       bool   `json:"is_available"`
}

type SweepResponse struct {
	Expired int `json:"expired"`
}

type ErrorDetail struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func toTicketResponse(t *Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID.String(),
		EventID:          t.EventID.String(),
		TicketTypeID:     t.TicketTypeID.String(),
		CustomerEmail:    t.CustomerEmail,
		CustomerName:     t.CustomerName,
		Status:           t.Status.String(),
		Price:            t.Price.StringFixed(2),
		ReservedAt:       t.ReservedAt,
		PurchasedAt:      t.PurchasedAt,
		CancelledAt:      t.CancelledAt,
		ExpiresAt:        t.ExpiresAt,
		PaymentReference: t.PaymentReference,
	}
}

func toTicketListResponse(tickets []Ticket) TicketListResponse {
	out := TicketListResponse{
		Tickets: make([]TicketResponse, 0, len(tickets)),
		Count:   len(tickets),
	}
	for i := range tickets {
		out.Tickets = append(out.Tickets, toTicketResponse(&tickets[i]))
	}
	return out
}

func toTicketPageResponse(tickets []Ticket, limit, offset int) TicketPageResponse {
	list := toTicketListResponse(tickets)
	return TicketPageResponse{
		Tickets: list.Tickets,
		Count:   list.Count,
		Limit:   limit,
		Offset:  offset,
	}
}

func toAvailabilityResponse(a *Availability) AvailabilityResponse {
	return AvailabilityResponse{
		TicketTypeID:      a.TicketTypeID.String(),
		TicketTypeName:    a.TicketTypeName,
		AvailableQuantity: a.AvailableQuantity,
		Price:             a.Price.StringFixed(2),
		IsAvailable:       a.IsAvailable,
	}
}

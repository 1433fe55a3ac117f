package tickets

type ReserveTicketRequest struct {
	TicketTypeID  string `json:"ticket_type_id" validate:"required,uuid"`
	CustomerEmail string `json:"customer_email" validate:"required,email,max=200"`
	CustomerName  string `json:"customer_name" validate:"required,min=2,max=200"`
}

type PurchaseTicketRequest struct {
	TicketID         string `json:"ticket_id" validate:"required,uuid"`
	PaymentReference string `json:"payment_reference" validate:"required,min=3,max=200"`
}

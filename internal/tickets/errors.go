package tickets

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the service wraps exactly one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violation")
	ErrValidation   = errors.New("validation error")
	ErrTransient    = errors.New("transient storage conflict")
)

var (
	ErrTicketTypeNotFound = fmt.Errorf("ticket type %w", ErrNotFound)
	ErrTicketNotFound     = fmt.Errorf("ticket %w", ErrNotFound)
)

var (
	ErrSoldOut            = fmt.Errorf("%w: no tickets available for this type", ErrBusinessRule)
	ErrTicketTypeInactive = fmt.Errorf("%w: ticket type is not on sale", ErrBusinessRule)
	ErrInvalidState       = fmt.Errorf("%w: ticket is not in a valid status for this operation", ErrBusinessRule)
	ErrReservationExpired = fmt.Errorf("%w: ticket reservation has expired", ErrBusinessRule)
	ErrAlreadyCancelled   = fmt.Errorf("%w: ticket is already cancelled", ErrBusinessRule)
)

// ErrLedgerInconsistent means an adjustment would push available_quantity outside
// [0, total_quantity]. The surrounding transaction is rolled back.
var ErrLedgerInconsistent = errors.New("inventory ledger inconsistent")

// ErrorCode maps an error to the stable code used in API responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTicketTypeNotFound):
		return "TICKET_TYPE_NOT_FOUND"
	case errors.Is(err, ErrTicketNotFound):
		return "TICKET_NOT_FOUND"
	case errors.Is(err, ErrSoldOut):
		return "TICKET_NOT_AVAILABLE"
	case errors.Is(err, ErrTicketTypeInactive):
		return "TICKET_TYPE_INACTIVE"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_TICKET_STATUS"
	case errors.Is(err, ErrReservationExpired):
		return "TICKET_RESERVATION_EXPIRED"
	case errors.Is(err, ErrAlreadyCancelled):
		return "TICKET_ALREADY_CANCELLED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrTransient):
		return "STORAGE_CONFLICT"
	}
	return "INTERNAL_ERROR"
}

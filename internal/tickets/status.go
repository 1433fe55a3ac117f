package tickets

type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusPurchased Status = "PURCHASED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// AllStatuses lists every ticket status in lifecycle order.
var AllStatuses = []Status{StatusReserved, StatusPurchased, StatusCancelled, StatusExpired}

// HoldingStatuses are the statuses whose tickets consume a unit of inventory.
var HoldingStatuses = []Status{StatusReserved, StatusPurchased}

// IsValid checks if the ticket status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusReserved, StatusPurchased, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// HoldsInventory reports whether a ticket in this status owns a unit of its ticket type.
func (s Status) HoldsInventory() bool {
	return s == StatusReserved || s == StatusPurchased
}

// Operation is an intent applied to an existing ticket.
type Operation string

const (
	OpPurchase Operation = "PURCHASE"
	OpCancel   Operation = "CANCEL"
	OpExpire   Operation = "EXPIRE"
)

// AllOperations lists every operation accepted by the transition table.
var AllOperations = []Operation{OpPurchase, OpCancel, OpExpire}

func (o Operation) String() string {
	return string(o)
}

type transitionKey struct {
	from Status
	op   Operation
}

type transitionRule struct {
	to  Status
	err error
}

// transitions is the complete (status x operation) table. A rule with a
// non-nil err is a rejection; anything missing from the table is ErrInvalidState.
var transitions = map[transitionKey]transitionRule{
	{StatusReserved, OpPurchase}: {to: StatusPurchased},
	{StatusReserved, OpCancel}:   {to: StatusCancelled},
	{StatusReserved, OpExpire}:   {to: StatusExpired},

	{StatusPurchased, OpPurchase}: {err: ErrInvalidState},
	{StatusPurchased, OpCancel}:   {to: StatusCancelled},
	{StatusPurchased, OpExpire}:   {err: ErrInvalidState},

	{StatusCancelled, OpPurchase}: {err: ErrInvalidState},
	{StatusCancelled, OpCancel}:   {err: ErrAlreadyCancelled},
	{StatusCancelled, OpExpire}:   {err: ErrInvalidState},

	{StatusExpired, OpPurchase}: {err: ErrReservationExpired},
	{StatusExpired, OpCancel}:   {to: StatusCancelled},
	{StatusExpired, OpExpire}:   {err: ErrInvalidState},
}

// Transition is the outcome of applying an operation to a ticket status.
type Transition struct {
	From Status
	To   Status
	Op   Operation
	// InventoryDelta is the signed adjustment to the ticket type's available quantity.
	InventoryDelta int
}

// Next resolves op against the transition table.
func (s Status) Next(op Operation) (Transition, error) {
	rule, ok := transitions[transitionKey{from: s, op: op}]
	if !ok {
		return Transition{}, ErrInvalidState
	}
	if rule.err != nil {
		return Transition{}, rule.err
	}
	return Transition{
		From:           s,
		To:             rule.to,
		Op:             op,
		InventoryDelta: inventoryDelta(s, rule.to),
	}, nil
}

// CanBeCancelled checks if a ticket with this status can be cancelled
func (s Status) CanBeCancelled() bool {
	_, err := s.Next(OpCancel)
	return err == nil
}

// inventoryDelta returns +1 when a unit is released, -1 when one is taken and 0
// otherwise. Deriving it from the holding set keeps every unit returned exactly once.
func inventoryDelta(from, to Status) int {
	switch {
	case from.HoldsInventory() && !to.HoldsInventory():
		return 1
	case !from.HoldsInventory() && to.HoldsInventory():
		return -1
	}
	return 0
}

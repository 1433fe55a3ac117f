package tickets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryStore implements Repository in memory. Transactions are serialised by a
// single mutex and rolled back by restoring a snapshot.
type memoryStore struct {
	mu      sync.Mutex
	types   map[uuid.UUID]TicketType
	tickets map[uuid.UUID]Ticket
	order   map[uuid.UUID]int
	seq     int

	// transientFailures makes the next N transactions run fn, roll back, and
	// report a serialisation failure.
	transientFailures int
	txAttempts        int
}

type memTxKey struct{}

var _ Repository = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		types:   make(map[uuid.UUID]TicketType),
		tickets: make(map[uuid.UUID]Ticket),
		order:   make(map[uuid.UUID]int),
	}
}

func inMemTx(ctx context.Context) bool {
	return ctx.Value(memTxKey{}) != nil
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.txAttempts++

	types := make(map[uuid.UUID]TicketType, len(m.types))
	for k, v := range m.types {
		types[k] = v
	}
	tickets := make(map[uuid.UUID]Ticket, len(m.tickets))
	for k, v := range m.tickets {
		tickets[k] = v
	}
	order := make(map[uuid.UUID]int, len(m.order))
	for k, v := range m.order {
		order[k] = v
	}
	rollback := func() {
		m.types, m.tickets, m.order = types, tickets, order
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		rollback()
		return err
	}
	if m.transientFailures > 0 {
		m.transientFailures--
		rollback()
		return fmt.Errorf("%w: could not serialize access", ErrTransient)
	}
	return nil
}

func (m *memoryStore) locked(ctx context.Context, f func() error) error {
	if inMemTx(ctx) {
		return f()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return f()
}

func (m *memoryStore) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var out *TicketType
	err := m.locked(ctx, func() error {
		tt, ok := m.types[id]
		if !ok {
			return ErrTicketTypeNotFound
		}
		out = &tt
		return nil
	})
	return out, err
}

func (m *memoryStore) GetTicketTypeForUpdate(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	return m.GetTicketType(ctx, id)
}

func (m *memoryStore) CreateTicketType(ctx context.Context, tt *TicketType) error {
	return m.locked(ctx, func() error {
		if tt.ID == uuid.Nil {
			tt.ID = uuid.New()
		}
		m.types[tt.ID] = *tt
		return nil
	})
}

func (m *memoryStore) AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	return m.locked(ctx, func() error {
		tt, ok := m.types[id]
		if !ok {
			return ErrTicketTypeNotFound
		}
		next := tt.AvailableQuantity + delta
		if next < 0 {
			return ErrSoldOut
		}
		if next > tt.TotalQuantity {
			return fmt.Errorf("%w: ticket type %s cannot be restored by %d", ErrLedgerInconsistent, id, delta)
		}
		tt.AvailableQuantity = next
		tt.Version++
		m.types[id] = tt
		return nil
	})
}

func (m *memoryStore) CountHoldingTickets(ctx context.Context, ticketTypeID uuid.UUID) (int, error) {
	count := 0
	err := m.locked(ctx, func() error {
		for _, t := range m.tickets {
			if t.TicketTypeID == ticketTypeID && t.Status.HoldsInventory() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (m *memoryStore) CreateTicket(ctx context.Context, t *Ticket) error {
	return m.locked(ctx, func() error {
		m.seq++
		m.tickets[t.ID] = *t
		m.order[t.ID] = m.seq
		return nil
	})
}

func (m *memoryStore) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var out *Ticket
	err := m.locked(ctx, func() error {
		t, ok := m.tickets[id]
		if !ok {
			return ErrTicketNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (m *memoryStore) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return m.GetTicket(ctx, id)
}

func (m *memoryStore) UpdateTicket(ctx context.Context, t *Ticket) error {
	return m.locked(ctx, func() error {
		if _, ok := m.tickets[t.ID]; !ok {
			return ErrTicketNotFound
		}
		m.tickets[t.ID] = *t
		return nil
	})
}

func (m *memoryStore) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Ticket, error) {
	var out []Ticket
	err := m.locked(ctx, func() error {
		for _, t := range m.tickets {
			if t.Status == StatusReserved && t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (m *memoryStore) ListTickets(ctx context.Context, limit, offset int) ([]Ticket, error) {
	all, err := m.list(ctx, func(Ticket) bool { return true })
	if err != nil || offset >= len(all) {
		return nil, err
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryStore) ListTicketsByEvent(ctx context.Context, eventID uuid.UUID) ([]Ticket, error) {
	return m.list(ctx, func(t Ticket) bool { return t.EventID == eventID })
}

func (m *memoryStore) ListTicketsByCustomer(ctx context.Context, email string) ([]Ticket, error) {
	return m.list(ctx, func(t Ticket) bool { return t.CustomerEmail == email })
}

func (m *memoryStore) list(ctx context.Context, match func(Ticket) bool) ([]Ticket, error) {
	var out []Ticket
	err := m.locked(ctx, func() error {
		for _, t := range m.tickets {
			if match(t) {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] > m.order[out[j].ID] })
		return nil
	})
	return out, err
}

func (m *memoryStore) failNextTransactions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transientFailures = n
}

func (m *memoryStore) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txAttempts
}

// setPrice changes the ticket type price outside any reservation.
func (m *memoryStore) setPrice(id uuid.UUID, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tt := m.types[id]
	tt.Price = price
	m.types[id] = tt
}

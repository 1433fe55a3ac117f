package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactor is the unit-of-work boundary. Work inside fn sees the transaction
// through ctx; returning an error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ledger is the ticket-type lookup and counter capability.
type Ledger interface {
	GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error)
	GetTicketTypeForUpdate(ctx context.Context, id uuid.UUID) (*TicketType, error)
	CreateTicketType(ctx context.Context, tt *TicketType) error
	// AdjustAvailable moves available_quantity by delta in one guarded statement
	// and bumps the row version. A decrement past zero yields ErrSoldOut; an
	// increment past total yields ErrLedgerInconsistent.
	AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) error
	CountHoldingTickets(ctx context.Context, ticketTypeID uuid.UUID) (int, error)
}

// TicketStore persists individual ticket records.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetTicketForUpdate(ctx context.Context, id uuid.UUID) (*Ticket, error)
	UpdateTicket(ctx context.Context, t *Ticket) error
	// ListExpiredReservations locks up to limit Reserved tickets whose deadline
	// is before now, skipping rows another transaction already holds.
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Ticket, error)
	ListTickets(ctx context.Context, limit, offset int) ([]Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID uuid.UUID) ([]Ticket, error)
	ListTicketsByCustomer(ctx context.Context, email string) ([]Ticket, error)
}

// Repository is everything the ticket service needs from storage.
type Repository interface {
	Transactor
	Ledger
	TicketStore
}

type repository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// RepositoryOption configures the gorm repository.
type RepositoryOption func(*repository)

// WithLockTimeout bounds how long a transaction waits on a row lock before the
// storage layer reports a transient conflict.
func WithLockTimeout(d time.Duration) RepositoryOption {
	return func(r *repository) {
		r.lockTimeout = d
	}
}

func NewRepository(db *gorm.DB, opts ...RepositoryOption) Repository {
	r := &repository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type txKey struct{}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// WithinTx runs fn in a transaction, or inside the caller's transaction when ctx
// already carries one.
func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return classifyError(err)
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *repository) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var tt TicketType
	err := r.conn(ctx).Where("id = ?", id).First(&tt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("get ticket type: %w", classifyError(err))
	}
	return &tt, nil
}

func (r *repository) GetTicketTypeForUpdate(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var tt TicketType
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&tt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("lock ticket type: %w", classifyError(err))
	}
	return &tt, nil
}

func (r *repository) CreateTicketType(ctx context.Context, tt *TicketType) error {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	if err := r.conn(ctx).Create(tt).Error; err != nil {
		return fmt.Errorf("create ticket type: %w", classifyError(err))
	}
	return nil
}

func (r *repository) AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}

	res := r.conn(ctx).
		Model(&TicketType{}).
		Where("id = ?", id).
		Where("available_quantity + ? >= 0 AND available_quantity + ? <= total_quantity", delta, delta).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", delta),
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("adjust available quantity: %w", classifyError(res.Error))
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or the guard rejected the delta.
	if _, err := r.GetTicketType(ctx, id); err != nil {
		return err
	}
	if delta < 0 {
		return ErrSoldOut
	}
	return fmt.Errorf("%w: ticket type %s cannot be restored by %d", ErrLedgerInconsistent, id, delta)
}

func (r *repository) CountHoldingTickets(ctx context.Context, ticketTypeID uuid.UUID) (int, error) {
	var count int64
	err := r.conn(ctx).
		Model(&Ticket{}).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("status IN ?", statusStrings(HoldingStatuses)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count holding tickets: %w", classifyError(err))
	}
	return int(count), nil
}

func (r *repository) CreateTicket(ctx context.Context, t *Ticket) error {
	if err := r.conn(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create ticket: %w", classifyError(err))
	}
	return nil
}

func (r *repository) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var t Ticket
	err := r.conn(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", classifyError(err))
	}
	return &t, nil
}

func (r *repository) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var t Ticket
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("lock ticket: %w", classifyError(err))
	}
	return &t, nil
}

func (r *repository) UpdateTicket(ctx context.Context, t *Ticket) error {
	res := r.conn(ctx).
		Model(t).
		Select("status", "purchased_at", "cancelled_at", "expires_at", "payment_reference", "updated_at").
		Updates(t)
	if res.Error != nil {
		return fmt.Errorf("update ticket: %w", classifyError(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (r *repository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Ticket, error) {
	var expired []Ticket
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", StatusReserved.String()).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&expired).Error
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", classifyError(err))
	}
	return expired, nil
}

func (r *repository) ListTickets(ctx context.Context, limit, offset int) ([]Ticket, error) {
	var tickets []Ticket
	err := r.conn(ctx).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", classifyError(err))
	}
	return tickets, nil
}

func (r *repository) ListTicketsByEvent(ctx context.Context, eventID uuid.UUID) ([]Ticket, error) {
	var tickets []Ticket
	err := r.conn(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets by event: %w", classifyError(err))
	}
	return tickets, nil
}

func (r *repository) ListTicketsByCustomer(ctx context.Context, email string) ([]Ticket, error) {
	var tickets []Ticket
	err := r.conn(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets by customer: %w", classifyError(err))
	}
	return tickets, nil
}

// Postgres SQLSTATE codes that indicate benign contention.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgCheckViolation       = "23514"
)

// classifyError maps storage failures onto the error taxonomy. Errors that are
// already domain errors pass through untouched.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		case pgCheckViolation:
			return fmt.Errorf("%w: %w", ErrLedgerInconsistent, err)
		}
	}
	return err
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

package tickets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"boxoffice/internal/clock"
	"boxoffice/internal/shared/constants"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultReservationWindow = 15 * time.Minute
	DefaultSweepBatchSize    = 100

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service is the reservation engine. Every state change commits the ticket
// record and its ledger adjustment together.
type Service interface {
	Reserve(ctx context.Context, req ReserveTicketRequest) (*Ticket, error)
	Purchase(ctx context.Context, req PurchaseTicketRequest) (*Ticket, error)
	Cancel(ctx context.Context, ticketID uuid.UUID) (*Ticket, error)
	GetAvailability(ctx context.Context, ticketTypeID uuid.UUID) (*Availability, error)
	SweepExpired(ctx context.Context) (int, error)

	GetTicket(ctx context.Context, ticketID uuid.UUID) (*Ticket, error)
	ListTickets(ctx context.Context, limit, offset int) ([]Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID uuid.UUID) ([]Ticket, error)
	ListTicketsByCustomer(ctx context.Context, email string) ([]Ticket, error)
	AuditLedger(ctx context.Context, ticketTypeID uuid.UUID) (*LedgerAudit, error)
}

// AvailabilityCache is the subset of cache.Service used for availability reads.
// Entries are versioned by the ledger row, so a write never replaces a newer one.
type AvailabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetIfNewer(ctx context.Context, key string, value interface{}, version int64, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	repo      Repository
	clock     clock.Clock
	publisher EventPublisher
	cache     AvailabilityCache
	logger    *logger.Logger
	validate  *validator.Validate
	retrier   *retrier.Retrier

	window    time.Duration
	batchSize int
}

type Option func(*service)

// WithReservationWindow sets how long a Reserved ticket holds its unit.
func WithReservationWindow(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithSweepBatchSize caps the tickets expired per sweep transaction.
func WithSweepBatchSize(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRetry sets the number of retries after a transient conflict and the
// initial backoff, which doubles on every retry.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(s *service) {
		s.retrier = newRetrier(retries, backoff)
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(s *service) {
		s.cache = c
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new ticket service instance
func NewService(repo Repository, clk clock.Clock, opts ...Option) Service {
	s := &service{
		repo:      repo,
		clock:     clk,
		publisher: noopPublisher{},
		logger:    logger.GetDefault(),
		validate:  validator.New(),
		retrier:   newRetrier(defaultRetryAttempts, defaultRetryBackoff),
		window:    DefaultReservationWindow,
		batchSize: DefaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve takes one unit of the ticket type and creates a Reserved ticket that
// holds it until the reservation window closes.
func (s *service) Reserve(ctx context.Context, req ReserveTicketRequest) (*Ticket, error) {
	req.TicketTypeID = strings.TrimSpace(req.TicketTypeID)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	ticketTypeID, err := uuid.Parse(req.TicketTypeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var (
		reserved *Ticket
		snapshot *Availability
	)
	err = s.inTx(ctx, "reserve", func(ctx context.Context) error {
		reserved, snapshot = nil, nil

		tt, err := s.repo.GetTicketTypeForUpdate(ctx, ticketTypeID)
		if err != nil {
			return err
		}
		if !tt.IsActive {
			return ErrTicketTypeInactive
		}
		if tt.AvailableQuantity <= 0 {
			return ErrSoldOut
		}
		if err := s.repo.AdjustAvailable(ctx, tt.ID, -1); err != nil {
			return err
		}

		now := s.clock.Now()
		expiresAt := now.Add(s.window)
		ticket := &Ticket{
			ID:            uuid.New(),
			EventID:       tt.EventID,
			TicketTypeID:  tt.ID,
			CustomerEmail: req.CustomerEmail,
			CustomerName:  req.CustomerName,
			Status:        StatusReserved,
			Price:         tt.Price,
			ReservedAt:    now,
			ExpiresAt:     &expiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		if snapshot, err = s.captureAvailability(ctx, tt.ID); err != nil {
			return err
		}
		reserved = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogTicketReserved(ctx, reserved.ID.String(), reserved.TicketTypeID.String(), reserved.CustomerEmail, *reserved.ExpiresAt)
	s.storeAvailability(ctx, snapshot)
	s.afterCommit(ctx, reserved, "")
	return reserved, nil
}

// Purchase settles a live reservation. A reservation found past its deadline is
// expired on the spot, its unit returned, and ErrReservationExpired reported.
func (s *service) Purchase(ctx context.Context, req PurchaseTicketRequest) (*Ticket, error) {
	req.TicketID = strings.TrimSpace(req.TicketID)
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	ticketID, err := uuid.Parse(req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var (
		ticket   *Ticket
		tr       Transition
		snapshot *Availability
	)
	err = s.inTx(ctx, "purchase", func(ctx context.Context) error {
		ticket, snapshot = nil, nil

		t, err := s.repo.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		op := OpPurchase
		if t.ReservationExpired(now) {
			op = OpExpire
		}
		tr, err = t.Status.Next(op)
		if err != nil {
			return err
		}
		if snapshot, err = s.applyTransition(ctx, t, tr, now, req.PaymentReference); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.storeAvailability(ctx, snapshot)
	s.afterCommit(ctx, ticket, tr.From)
	if tr.Op == OpExpire {
		s.logger.LogTicketExpired(ctx, ticket.ID.String(), ticket.TicketTypeID.String())
		return nil, ErrReservationExpired
	}

	s.logger.LogTicketPurchased(ctx, ticket.ID.String(), ticket.TicketTypeID.String(), req.PaymentReference)
	return ticket, nil
}

// Cancel moves any non-cancelled ticket to Cancelled, returning its unit when it
// still held one.
func (s *service) Cancel(ctx context.Context, ticketID uuid.UUID) (*Ticket, error) {
	var (
		ticket   *Ticket
		tr       Transition
		snapshot *Availability
	)
	err := s.inTx(ctx, "cancel", func(ctx context.Context) error {
		ticket, snapshot = nil, nil

		t, err := s.repo.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		tr, err = t.Status.Next(OpCancel)
		if err != nil {
			return err
		}
		if snapshot, err = s.applyTransition(ctx, t, tr, s.clock.Now(), ""); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogTicketCancelled(ctx, ticket.ID.String(), ticket.TicketTypeID.String(), tr.From.String())
	s.storeAvailability(ctx, snapshot)
	s.afterCommit(ctx, ticket, tr.From)
	return ticket, nil
}

// GetAvailability reads the live counter, through the cache when one is
// configured. The read runs outside any transaction, so the value it caches is
// versioned and refused if a commit has already cached a newer one.
func (s *service) GetAvailability(ctx context.Context, ticketTypeID uuid.UUID) (*Availability, error) {
	key := constants.BuildTicketAvailabilityKey(ticketTypeID.String())

	if s.cache != nil {
		var cached Availability
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "availability cache read failed", "error", err, "ticket_type_id", ticketTypeID)
		}
	}

	tt, err := s.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}

	availability := availabilityOf(tt)
	if s.cache != nil {
		if _, err := s.cache.SetIfNewer(ctx, key, availability, availability.Version, constants.TTL_TICKET_AVAILABILITY); err != nil {
			s.logger.WarnContext(ctx, "availability cache write failed", "error", err, "ticket_type_id", ticketTypeID)
		}
	}

	return availability, nil
}

// SweepExpired expires every Reserved ticket past its deadline, one transaction
// per batch, and returns how many it expired. Cancellation is observed between
// batches only.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := s.sweepBatch(context.WithoutCancel(ctx))
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batchSize {
			return total, nil
		}
	}
}

func (s *service) sweepBatch(ctx context.Context) (int, error) {
	var (
		expired   []Ticket
		snapshots []*Availability
	)
	err := s.inTx(ctx, "sweep", func(ctx context.Context) error {
		expired, snapshots = nil, nil

		now := s.clock.Now()
		candidates, err := s.repo.ListExpiredReservations(ctx, now, s.batchSize)
		if err != nil {
			return err
		}

		returned := make(map[uuid.UUID]int)
		for i := range candidates {
			t := &candidates[i]
			tr, err := t.Status.Next(OpExpire)
			if err != nil {
				return fmt.Errorf("expire ticket %s: %w", t.ID, err)
			}
			t.apply(tr, now, "")
			if err := s.repo.UpdateTicket(ctx, t); err != nil {
				return err
			}
			returned[t.TicketTypeID] += tr.InventoryDelta
			expired = append(expired, *t)
		}

		// Fixed order keeps concurrent sweeps from deadlocking on ledger rows.
		ids := make([]uuid.UUID, 0, len(returned))
		for id := range returned {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		for _, id := range ids {
			if err := s.repo.AdjustAvailable(ctx, id, returned[id]); err != nil {
				return err
			}
			snapshot, err := s.captureAvailability(ctx, id)
			if err != nil {
				return err
			}
			snapshots = append(snapshots, snapshot)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, snapshot := range snapshots {
		s.storeAvailability(ctx, snapshot)
	}

	for i := range expired {
		t := &expired[i]
		s.logger.LogTicketExpired(ctx, t.ID.String(), t.TicketTypeID.String())
		s.afterCommit(ctx, t, StatusReserved)
	}
	return len(expired), nil
}

func (s *service) GetTicket(ctx context.Context, ticketID uuid.UUID) (*Ticket, error) {
	return s.repo.GetTicket(ctx, ticketID)
}

// ListTickets pages through every ticket, newest first. A non-positive limit
// means DefaultListLimit and limits above MaxListLimit are capped.
func (s *service) ListTickets(ctx context.Context, limit, offset int) ([]Ticket, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTickets(ctx, limit, offset)
}

func (s *service) ListTicketsByEvent(ctx context.Context, eventID uuid.UUID) ([]Ticket, error) {
	return s.repo.ListTicketsByEvent(ctx, eventID)
}

func (s *service) ListTicketsByCustomer(ctx context.Context, email string) ([]Ticket, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email,max=200"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.repo.ListTicketsByCustomer(ctx, email)
}

// AuditLedger checks available + holding == total for one ticket type. Both
// reads share a transaction so they describe the same instant.
func (s *service) AuditLedger(ctx context.Context, ticketTypeID uuid.UUID) (*LedgerAudit, error) {
	var audit *LedgerAudit
	err := s.inTx(ctx, "audit", func(ctx context.Context) error {
		tt, err := s.repo.GetTicketTypeForUpdate(ctx, ticketTypeID)
		if err != nil {
			return err
		}
		holding, err := s.repo.CountHoldingTickets(ctx, ticketTypeID)
		if err != nil {
			return err
		}
		audit = &LedgerAudit{
			TicketTypeID:      tt.ID,
			TotalQuantity:     tt.TotalQuantity,
			AvailableQuantity: tt.AvailableQuantity,
			HoldingTickets:    holding,
			Consistent:        tt.AvailableQuantity+holding == tt.TotalQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !audit.Consistent {
		s.logger.ErrorContext(ctx, "inventory ledger out of balance",
			"ticket_type_id", audit.TicketTypeID,
			"total", audit.TotalQuantity,
			"available", audit.AvailableQuantity,
			"holding", audit.HoldingTickets,
		)
	}
	return audit, nil
}

// applyTransition writes tr and its ledger delta. It returns the ledger row as
// of this transaction when the counter moved and a cache is configured.
func (s *service) applyTransition(ctx context.Context, t *Ticket, tr Transition, now time.Time, paymentReference string) (*Availability, error) {
	t.apply(tr, now, paymentReference)
	if err := s.repo.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}
	if tr.InventoryDelta == 0 {
		return nil, nil
	}
	if err := s.repo.AdjustAvailable(ctx, t.TicketTypeID, tr.InventoryDelta); err != nil {
		return nil, err
	}
	return s.captureAvailability(ctx, t.TicketTypeID)
}

// captureAvailability reads the ledger row inside the current transaction, after
// its adjustment, so the value cached on commit is the committed one.
func (s *service) captureAvailability(ctx context.Context, ticketTypeID uuid.UUID) (*Availability, error) {
	if s.cache == nil {
		return nil, nil
	}
	tt, err := s.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	return availabilityOf(tt), nil
}

// storeAvailability writes a committed snapshot through to the cache. If the
// write fails the entry is dropped so an older value cannot linger.
func (s *service) storeAvailability(ctx context.Context, a *Availability) {
	if s.cache == nil || a == nil {
		return
	}
	key := constants.BuildTicketAvailabilityKey(a.TicketTypeID.String())
	if _, err := s.cache.SetIfNewer(ctx, key, a, a.Version, constants.TTL_TICKET_AVAILABILITY); err != nil {
		s.logger.WarnContext(ctx, "availability cache refresh failed", "error", err, "ticket_type_id", a.TicketTypeID)
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "availability cache invalidation failed", "error", err, "ticket_type_id", a.TicketTypeID)
		}
	}
}

// afterCommit publishes the event of a committed transition. A failed publish
// never fails the operation.
func (s *service) afterCommit(ctx context.Context, t *Ticket, previous Status) {
	event := newTicketEvent(t, previous, s.clock.Now())
	if err := s.publisher.PublishTicketEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "ticket event publish failed",
			"error", err,
			"event_type", event.Type,
			"ticket_id", t.ID,
		)
	}
}

func (s *service) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

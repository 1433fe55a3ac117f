package tickets_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/clock"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/testutil"
	"boxoffice/internal/tickets"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepository(t *testing.T) (*gorm.DB, tickets.Repository) {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.Migrate(t, db, database.Migrate)
	testutil.TruncateAll(t, db)
	return db, tickets.NewRepository(db, tickets.WithLockTimeout(2*time.Second))
}

func createType(t *testing.T, repo tickets.Repository, total int) *tickets.TicketType {
	t.Helper()
	tt := &tickets.TicketType{
		EventID:           uuid.New(),
		Name:              "Floor",
		Price:             decimal.RequireFromString("75.00"),
		TotalQuantity:     total,
		AvailableQuantity: total,
		IsActive:          true,
	}
	require.NoError(t, repo.CreateTicketType(context.Background(), tt))
	return tt
}

func newStartClock() *clock.Manual {
	return clock.NewManual(time.Now().UTC().Truncate(time.Second))
}

func TestRepositoryAdjustAvailableGuards(t *testing.T) {
	_, repo := setupRepository(t)
	ctx := context.Background()
	tt := createType(t, repo, 1)

	err := repo.AdjustAvailable(ctx, tt.ID, 1)
	assert.ErrorIs(t, err, tickets.ErrLedgerInconsistent)

	require.NoError(t, repo.AdjustAvailable(ctx, tt.ID, -1))
	err = repo.AdjustAvailable(ctx, tt.ID, -1)
	assert.ErrorIs(t, err, tickets.ErrSoldOut)

	err = repo.AdjustAvailable(ctx, uuid.New(), -1)
	assert.ErrorIs(t, err, tickets.ErrTicketTypeNotFound)

	stored, err := repo.GetTicketType(ctx, tt.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.AvailableQuantity)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRepositoryWithinTxRollsBack(t *testing.T) {
	_, repo := setupRepository(t)
	ctx := context.Background()
	tt := createType(t, repo, 3)

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.AdjustAvailable(ctx, tt.ID, -2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.GetTicketType(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AvailableQuantity)
}

func TestRepositoryLastUnitRace(t *testing.T) {
	_, repo := setupRepository(t)
	tt := createType(t, repo, 1)
	svc := tickets.NewService(repo, clock.NewSystem(), tickets.WithLogger(logger.Discard()))

	const buyers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), tickets.ReserveTicketRequest{
				TicketTypeID:  tt.ID.String(),
				CustomerEmail: "race@example.com",
				CustomerName:  "Race Entrant",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			if !errors.Is(err, tickets.ErrSoldOut) && !errors.Is(err, tickets.ErrTransient) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	audit, err := svc.AuditLedger(context.Background(), tt.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Zero(t, audit.AvailableQuantity)
	assert.Equal(t, 1, audit.HoldingTickets)
}

func TestRepositoryPurchaseVersusSweep(t *testing.T) {
	_, repo := setupRepository(t)
	tt := createType(t, repo, 1)
	clk := newStartClock()
	svc := tickets.NewService(repo, clk,
		tickets.WithLogger(logger.Discard()),
		tickets.WithReservationWindow(time.Second),
	)
	ctx := context.Background()

	ticket, err := svc.Reserve(ctx, tickets.ReserveTicketRequest{
		TicketTypeID:  tt.ID.String(),
		CustomerEmail: "race@example.com",
		CustomerName:  "Race Entrant",
	})
	require.NoError(t, err)
	clk.Advance(2 * time.Second)

	var (
		wg          sync.WaitGroup
		purchaseErr error
		sweepErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, purchaseErr = svc.Purchase(ctx, tickets.PurchaseTicketRequest{
			TicketID:         ticket.ID.String(),
			PaymentReference: "pay_race",
		})
	}()
	go func() {
		defer wg.Done()
		_, sweepErr = svc.SweepExpired(ctx)
	}()
	wg.Wait()

	require.NoError(t, sweepErr)
	assert.ErrorIs(t, purchaseErr, tickets.ErrReservationExpired)

	stored, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, tickets.StatusExpired, stored.Status)
	assert.Nil(t, stored.ExpiresAt)

	audit, err := svc.AuditLedger(ctx, tt.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, 1, audit.AvailableQuantity)
}

func TestRepositoryListExpiredReservations(t *testing.T) {
	_, repo := setupRepository(t)
	tt := createType(t, repo, 5)
	clk := newStartClock()
	svc := tickets.NewService(repo, clk, tickets.WithLogger(logger.Discard()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Reserve(ctx, tickets.ReserveTicketRequest{
			TicketTypeID:  tt.ID.String(),
			CustomerEmail: "list@example.com",
			CustomerName:  "List Entrant",
		})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	now := clk.Now().Add(tickets.DefaultReservationWindow)
	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		expired, err := repo.ListExpiredReservations(ctx, now, 2)
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.True(t, expired[0].ExpiresAt.Before(*expired[1].ExpiresAt))
		return nil
	})
	require.NoError(t, err)

	byCustomer, err := svc.ListTicketsByCustomer(ctx, "list@example.com")
	require.NoError(t, err)
	require.Len(t, byCustomer, 3)
	assert.False(t, byCustomer[0].CreatedAt.Before(byCustomer[2].CreatedAt))

	page, err := repo.ListTickets(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, err := repo.ListTickets(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].CreatedAt.Before(page[1].CreatedAt))
}

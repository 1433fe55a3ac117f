package tickets

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"boxoffice/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSweepTarget struct {
	mock.Mock
	calls chan struct{}
}

func newMockSweepTarget() *mockSweepTarget {
	return &mockSweepTarget{calls: make(chan struct{}, 16)}
}

func (m *mockSweepTarget) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	select {
	case m.calls <- struct{}{}:
	default:
	}
	return args.Int(0), args.Error(1)
}

func (m *mockSweepTarget) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-m.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not run", i+1)
		}
	}
}

func TestSweeperRunsImmediatelyAndOnInterval(t *testing.T) {
	target := newMockSweepTarget()
	target.On("SweepExpired", mock.Anything).Return(2, nil)

	s := NewSweeper(target, &SweeperConfig{Interval: 10 * time.Millisecond}, logger.Discard())
	assert.Equal(t, "idle", s.Status()["status"])

	s.Start(context.Background())
	target.waitCalls(t, 3)
	assert.Equal(t, "running", s.Status()["status"])

	s.Stop()
	assert.Equal(t, "stopped", s.Status()["status"])
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestSweeperContinuesAfterFailedTick(t *testing.T) {
	target := newMockSweepTarget()
	target.On("SweepExpired", mock.Anything).Return(0, errors.New("connection reset")).Once()
	target.On("SweepExpired", mock.Anything).Return(1, nil)

	s := NewSweeper(target, &SweeperConfig{Interval: 10 * time.Millisecond}, logger.Discard())
	s.Start(context.Background())
	target.waitCalls(t, 2)
	s.Stop()

	target.AssertExpectations(t)
}

func TestSweeperStopsWithParentContext(t *testing.T) {
	target := newMockSweepTarget()
	target.On("SweepExpired", mock.Anything).Return(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSweeper(target, &SweeperConfig{Interval: time.Hour}, logger.Discard())
	s.Start(ctx)
	target.waitCalls(t, 1)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not exit after context cancellation")
	}

	// Stop after exit is safe and idempotent.
	s.Stop()
	s.Stop()
}

func TestSweeperStartTwiceRunsOneLoop(t *testing.T) {
	target := newMockSweepTarget()
	target.On("SweepExpired", mock.Anything).Return(0, nil)

	s := NewSweeper(target, &SweeperConfig{Interval: time.Hour}, logger.Discard())
	s.Start(context.Background())
	s.Start(context.Background())
	target.waitCalls(t, 1)

	select {
	case <-target.calls:
		t.Fatal("second Start launched another loop")
	case <-time.After(50 * time.Millisecond):
	}

	assert.NotPanics(t, s.Stop)
	target.AssertNumberOfCalls(t, "SweepExpired", 1)
}

func TestSweeperDoesNotReportInterruptedSweepAsCompleted(t *testing.T) {
	entered := make(chan struct{})
	target := newMockSweepTarget()
	target.On("SweepExpired", mock.Anything).
		Run(func(args mock.Arguments) {
			close(entered)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(3, context.Canceled).
		Once()

	var buf bytes.Buffer
	s := NewSweeper(target, &SweeperConfig{Interval: time.Hour}, logger.NewWithWriter(&buf, "debug"))
	s.Start(context.Background())

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not start")
	}
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "Expiry sweep interrupted")
	assert.NotContains(t, out, "Expiry Sweep Completed")
	assert.NotContains(t, out, "Expiry sweep failed")
}

func TestSweeperDrivesService(t *testing.T) {
	f := newFixture(t)
	tt := f.seedType(t, 2, true)
	f.reserve(t, tt, "ada@example.com")
	f.clock.Advance(time.Hour)

	s := NewSweeper(f.service, &SweeperConfig{Interval: time.Hour}, logger.Discard())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return f.available(t, tt.ID) == 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestNewSweeperDefaults(t *testing.T) {
	s := NewSweeper(newMockSweepTarget(), nil, nil)
	assert.Equal(t, DefaultSweeperConfig().Interval.String(), s.Status()["interval"])
}

package tickets

import (
	"context"
	"sync"
	"time"

	"boxoffice/pkg/logger"
)

// SweepTarget is anything that can expire stale reservations.
type SweepTarget interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweeperConfig contains configuration for the expiry sweeper
type SweeperConfig struct {
	Interval time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval: time.Minute,
	}
}

// Sweeper drives SweepExpired on a fixed interval until stopped.
type Sweeper struct {
	target SweepTarget
	config *SweeperConfig
	logger *logger.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(target SweepTarget, config *SweeperConfig, log *logger.Logger) *Sweeper {
	if config == nil || config.Interval <= 0 {
		config = DefaultSweeperConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &Sweeper{
		target: target,
		config: config,
		logger: log.WithComponent("expiry_sweeper"),
		done:   make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs immediately. Only the
// first call has any effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()

		s.logger.Info("Starting expiry sweeper", "interval", s.config.Interval.String())
		go s.run(ctx)
	})
}

// Stop signals the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping expiry sweeper")
		if cancel := s.cancelFunc(); cancel != nil {
			cancel()
			<-s.done
		}
		s.logger.Info("Expiry sweeper stopped")
	})
}

func (s *Sweeper) cancelFunc() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

// Done is closed once the loop has exited.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// sweep runs one tick. A failed tick is logged and retried on the next one.
func (s *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	expired, err := s.target.SweepExpired(ctx)
	if err != nil {
		// Shutdown between batches is not a failure, but the sweep is not complete either.
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "Expiry sweep interrupted",
				"expired_before_stop", expired,
			)
			return
		}
		s.logger.ErrorContext(ctx, "Expiry sweep failed",
			"error", err,
			"expired_before_failure", expired,
		)
		return
	}

	s.logger.LogSweepCompleted(ctx, expired, time.Since(start))
}

// Status reports the sweeper's configuration for diagnostics.
func (s *Sweeper) Status() map[string]interface{} {
	status := "idle"
	if s.cancelFunc() != nil {
		status = "running"
		select {
		case <-s.done:
			status = "stopped"
		default:
		}
	}

	return map[string]interface{}{
		"interval": s.config.Interval.String(),
		"status":   status,
	}
}

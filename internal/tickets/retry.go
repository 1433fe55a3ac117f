package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 20 * time.Millisecond
)

// transientClassifier retries only contention failures. Business and validation
// errors are final on the first attempt.
type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, ErrTransient):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

func newRetrier(attempts int, backoff time.Duration) *retrier.Retrier {
	if attempts < 0 {
		attempts = 0
	}
	return retrier.New(retrier.ExponentialBackoff(attempts, backoff), transientClassifier{})
}

// inTx runs fn in a fresh transaction, re-running the whole unit when storage
// reports a transient conflict. fn must reset any state it captures.
func (s *service) inTx(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return s.retrier.RunCtx(ctx, func(ctx context.Context) error {
		err := s.repo.WithinTx(ctx, fn)
		if errors.Is(err, ErrTransient) {
			s.logger.LogTransactionRetry(ctx, operation, err)
		}
		return err
	})
}

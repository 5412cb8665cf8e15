package chain

import (
	"context"
	"time"
)

const (
	// maxCallAttempts bounds retries of a single RPC read.
	maxCallAttempts = 3
	// retryBackoffStep grows linearly with the attempt index.
	retryBackoffStep = 100 * time.Millisecond
	// callTimeout applies per attempt, not across the whole schedule.
	callTimeout = 15 * time.Second
)

// withRetry runs fn up to maxCallAttempts times with linear backoff
// 100ms*(attempt+1) between attempts. Every attempt targets the same block
// tag; retrying never moves the read. Permanent errors propagate on the first
// attempt; exhaustion is surfaced as a *FetchError with the last cause.
func withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxCallAttempts; attempt++ {
		if attempt > 0 {
			rpcRetries.WithLabelValues(op).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoffStep * time.Duration(attempt)):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, callTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			if pe, ok := err.(permanentError); ok {
				return pe.err
			}
			return err
		}
		lastErr = err
		log.WithError(err).WithField("op", op).WithField("attempt", attempt+1).Debug("Retrying chain read")
	}
	return &FetchError{Op: op, Attempts: maxCallAttempts, Err: lastErr}
}

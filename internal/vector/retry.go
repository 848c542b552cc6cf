package vector

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultRetryInterval = 200 * time.Millisecond

// isTransient reports whether a gRPC error is worth retrying.
func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// withRetry runs fn until it succeeds, fails permanently, or maxRetries retries are spent.
func withRetry[T any](ctx context.Context, maxRetries int, interval time.Duration, logger *zap.Logger, op string, fn func() (T, error)) (T, error) {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 20 * interval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("vector store call failed, retrying",
				zap.String("op", op),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
}

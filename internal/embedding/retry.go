package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryEmbedder repeats calls that fail with a retryable *APIError.
type RetryEmbedder struct {
	Embedder
	maxRetries int
	interval   time.Duration
	logger     *zap.Logger
}

// NewRetryEmbedder wraps e. maxRetries is the number of extra attempts after the first.
func NewRetryEmbedder(e Embedder, maxRetries int, interval time.Duration, logger *zap.Logger) *RetryEmbedder {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryEmbedder{Embedder: e, maxRetries: maxRetries, interval: interval, logger: logger}
}

func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry(ctx, r, func() ([]float32, error) {
		return r.Embedder.Embed(ctx, text)
	})
}

func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry(ctx, r, func() ([][]float32, error) {
		return r.Embedder.EmbedBatch(ctx, texts)
	})
}

func retry[T any](ctx context.Context, r *RetryEmbedder, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	tries := r.maxRetries
	if tries < 0 {
		tries = 0
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !isRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(tries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("embedding call failed, retrying", zap.Duration("backoff", next), zap.Error(err))
		}),
	)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

package session

import (
	"context"
	"time"

	"github.com/boltforge/authgate/internal/models"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the backoff applied to reads that must tolerate
// transient connectivity failure. Only network-classified errors retry;
// an auth rejection is propagated immediately since retrying bad
// credentials is both wrong and a waste of the rate-limit budget.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// DefaultRetryPolicy matches the production bootstrap settings: up to three
// retries with delays of base, 2*base, 4*base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// retryNetwork runs op with exponential backoff, retrying only failures the
// adapter classified as network-kind.
func retryNetwork[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	backoff := retry.WithMaxRetries(policy.MaxRetries, retry.NewExponential(policy.BaseDelay))

	var out T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			if models.IsNetworkError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}

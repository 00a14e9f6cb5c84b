// Package retry retries transient upstream failures with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tubematch/internal/core"
)

// Policy bounds the retries of one collaborator call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig builds a Policy from the retry configuration.
func FromConfig(cfg core.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}
}

// NoRetry runs the operation exactly once.
var NoRetry = Policy{MaxAttempts: 1}

// Retryable reports whether err is a transient upstream failure: 429, 5xx,
// or a transport error without a status. Context errors never retry.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	return false
}

// Do runs op until it succeeds, fails permanently, the attempts are used up
// or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("Retrying transient upstream failure",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	//nolint:gosec // attempts is at least 1
	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx)
	return backoff.RetryNotify(operation, b, notify)
}

func (p Policy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

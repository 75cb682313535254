package ai

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryOptions bounds a model call.
type RetryOptions struct {
	Attempts          int
	Delay             time.Duration
	Timeout           time.Duration
	RequestsPerMinute int
}

// RetryingModel wraps a Model with a hard timeout, a process-wide rate limit and
// exponential-backoff retries on transient failures.
type RetryingModel struct {
	next    Model
	opts    RetryOptions
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewRetryingModel(next Model, opts RetryOptions, log *zap.Logger) *RetryingModel {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &RetryingModel{next: next, opts: opts, log: log}
	if opts.RequestsPerMinute > 0 {
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return m
}

func (m *RetryingModel) Generate(ctx context.Context, req Request) (string, error) {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	return retry.DoWithData(
		func() (string, error) {
			if m.limiter != nil {
				if err := m.limiter.Wait(ctx); err != nil {
					return "", err
				}
			}
			return m.next.Generate(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(uint(m.opts.Attempts)),
		retry.Delay(m.opts.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && IsTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			m.log.Warn("AI call failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/richinex/smith/internal/logging"
)

const (
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
	// RetryMaxElapsedTime is the maximum total time for retries.
	RetryMaxElapsedTime = 2 * time.Minute
)

// RetryModel retries transient provider failures with exponential backoff.
// A stream is only retried while it has produced no events.
type RetryModel struct {
	inner      Model
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// WithRetry wraps m so failed requests are retried up to maxRetries times.
func WithRetry(m Model, maxRetries uint64) *RetryModel {
	return &RetryModel{
		inner:      m,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = RetryInitialInterval
			b.MaxInterval = RetryMaxInterval
			b.MaxElapsedTime = RetryMaxElapsedTime
			b.RandomizationFactor = 0.5
			b.Multiplier = 2.0
			b.Reset()
			return b
		},
	}
}

func (r *RetryModel) Name() string  { return r.inner.Name() }
func (r *RetryModel) Model() string { return r.inner.Model() }

func (r *RetryModel) policy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
}

// Complete retries the inner Complete on transient errors.
func (r *RetryModel) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var resp CompletionResponse
	err := backoff.RetryNotify(func() error {
		var err error
		resp, err = r.inner.Complete(ctx, req)
		return classify(err)
	}, r.policy(ctx), r.notify)
	return resp, unwrapPermanent(err)
}

// Stream opens the inner stream, retrying while no event has been yielded.
func (r *RetryModel) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	first, err := r.inner.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	return func(yield func(StreamEvent, error) bool) {
		stream := first
		policy := r.policy(ctx)

		for {
			emitted := false
			var streamErr error
			for ev, err := range stream {
				if err != nil {
					streamErr = err
					break
				}
				emitted = true
				if !yield(ev, nil) {
					return
				}
			}
			if streamErr == nil {
				return
			}

			if emitted || !retryable(streamErr) {
				yield(nil, streamErr)
				return
			}
			wait := policy.NextBackOff()
			if wait == backoff.Stop {
				yield(nil, streamErr)
				return
			}
			r.notify(streamErr, wait)

			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-time.After(wait):
			}

			next, err := r.inner.Stream(ctx, req)
			if err != nil {
				yield(nil, err)
				return
			}
			stream = next
		}
	}, nil
}

func (r *RetryModel) notify(err error, wait time.Duration) {
	logging.Warn().
		Str("provider", r.inner.Name()).
		Dur("retry_in", wait).
		Err(err).
		Msg("retrying model request")
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrStreamingUnsupported) &&
		!errors.Is(err, ErrIncompleteStream)
}

// classify marks errors that must not be retried as permanent.
func classify(err error) error {
	if err == nil || retryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// Verify RetryModel implements Model
var _ Model = (*RetryModel)(nil)

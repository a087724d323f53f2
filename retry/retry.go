// Package retry runs one outbound request with bounded attempts and
// exponential backoff, consulting a failures.Tracker before any network call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/unkn0wn-root/catalogcache/failures"
	"github.com/unkn0wn-root/catalogcache/logging"
)

// Policy mirrors the retry-related settings.
type Policy struct {
	Enabled                  bool
	MaxAttempts              int
	InitialDelay             time.Duration
	ThrowOnPersistentFailure bool
}

// Attempts is the number of calls one Do makes at most.
// Disabled retries or MaxAttempts <= 0 mean a single attempt.
func (p Policy) Attempts() int {
	if !p.Enabled || p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay is the wait before attempt k+1: InitialDelay * 2^(k-1).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	return p.InitialDelay << (k - 1)
}

// PersistentError is returned by Do only when ThrowOnPersistentFailure is set.
type PersistentError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *PersistentError) Error() string {
	return fmt.Sprintf("persistent failure for %s after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *PersistentError) Unwrap() error { return e.Err }

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

type Class int

const (
	Transient Class = iota
	Permanent
)

// Classify decides whether err is worth another attempt. Client errors
// (4xx other than 408 and 429) are permanent; everything else, including
// network errors and errors of unknown shape, is transient.
func Classify(err error) Class {
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return Permanent
		}
		return Transient
	}
	return Transient
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Executor struct {
	policy       Policy
	tracker      *failures.Tracker
	log          logging.Logger
	sleep        SleepFunc
	onPersistent func(target string, err error)
}

type Option func(*Executor)

func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithPersistentHook is called after a target is recorded as failing.
func WithPersistentHook(fn func(target string, err error)) Option {
	return func(e *Executor) { e.onPersistent = fn }
}

func New(policy Policy, tracker *failures.Tracker, log logging.Logger, opts ...Option) *Executor {
	if tracker == nil {
		tracker = failures.New(0, log)
	}
	e := &Executor{
		policy:  policy,
		tracker: tracker,
		log:     logging.OrNop(log),
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Executor) Policy() Policy { return e.policy }

// Do runs op against target. It returns (v, true, nil) on success and
// (zero, false, nil) when the target is a known failure or has just become
// one; with ThrowOnPersistentFailure the latter carries a *PersistentError.
// Cancellation of ctx is returned as the context error and is never recorded.
func Do[T any](ctx context.Context, e *Executor, target string, op func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if e.tracker.IsKnownFailure(target) {
		e.log.Debug("skipping known failing target", logging.Fields{"target": target})
		return zero, false, nil
	}

	max := e.policy.Attempts()
	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		attempts = attempt
		v, err := op(ctx)
		if err == nil {
			return v, true, nil
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return zero, false, err
		}
		lastErr = err
		if Classify(err) == Permanent {
			e.log.Warn("request failed with non-retryable error", logging.Fields{
				"target": target, "attempt": attempt, "err": err,
			})
			break
		}
		if attempt == max {
			break
		}
		delay := e.policy.Delay(attempt)
		e.log.Warn("request failed, retrying", logging.Fields{
			"target": target, "attempt": attempt, "max_attempts": max, "delay": delay.String(), "err": err,
		})
		if err := e.sleep(ctx, delay); err != nil {
			return zero, false, err
		}
	}

	e.tracker.RecordFailure(target, lastErr.Error())
	e.log.Warn("persistent failure, target skipped until failure ttl expires", logging.Fields{
		"target": target, "attempts": attempts, "err": lastErr,
	})
	if e.onPersistent != nil {
		e.onPersistent(target, lastErr)
	}
	if e.policy.ThrowOnPersistentFailure {
		return zero, false, &PersistentError{Target: target, Attempts: attempts, Err: lastErr}
	}
	return zero, false, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StepFunc is the body of a single workflow step. Its result is memoized
// for the duration of one run, so later steps can retry without re-executing
// earlier ones.
type StepFunc func(ctx context.Context) (any, error)

// Runner executes named steps with retry and per-run memoization. One Runner
// instance is scoped to one workflow run; the journal is its durable state
// stand-in, so a step body must read everything else from storage.
type Runner struct {
	retries int
	backoff time.Duration
	logger  *zap.Logger
	journal map[string]any
	sleep   func(context.Context, time.Duration) error

	// Observe, when set, is called once per step attempt with the outcome
	// ("ok", "retrying", "failed").
	Observe func(step, outcome string, attempt int, err error)
}

// NewRunner builds a runner for a single workflow run. retries is the number
// of extra attempts after the first; backoff is the base delay, doubled per
// retry.
func NewRunner(retries int, backoff time.Duration, logger *zap.Logger) *Runner {
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		retries: retries,
		backoff: backoff,
		logger:  logger,
		journal: make(map[string]any),
		sleep:   sleepCtx,
	}
}

// Run executes the named step. A step that already completed in this run
// returns its journaled result without re-executing. Transient failures are
// retried up to the budget; a NonRetriableError aborts immediately.
func (r *Runner) Run(ctx context.Context, name string, fn StepFunc) (any, error) {
	if result, done := r.journal[name]; done {
		return result, nil
	}

	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := fn(ctx)
		if err == nil {
			r.journal[name] = result
			r.observe(name, "ok", attempt, nil)
			return result, nil
		}
		lastErr = err
		if IsNonRetriable(err) {
			r.observe(name, "failed", attempt, err)
			r.logger.Error("step failed permanently",
				zap.String("step", name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return nil, err
		}
		if attempt < r.retries {
			r.observe(name, "retrying", attempt, err)
			r.logger.Warn("step failed, retrying",
				zap.String("step", name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if err := r.sleep(ctx, r.backoff<<attempt); err != nil {
				return nil, err
			}
		}
	}
	r.observe(name, "failed", r.retries, lastErr)
	r.logger.Error("step exhausted retries",
		zap.String("step", name),
		zap.Int("attempts", r.retries+1),
		zap.Error(lastErr))
	return nil, fmt.Errorf("step %s: %w", name, lastErr)
}

func (r *Runner) observe(step, outcome string, attempt int, err error) {
	if r.Observe != nil {
		r.Observe(step, outcome, attempt+1, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Step runs fn through the runner and asserts the journaled result type.
// It exists so step bodies keep their concrete return types.
func Step[T any](ctx context.Context, r *Runner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := r.Run(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("step %s: journaled result has type %T", name, result)
	}
	return typed, nil
}

// NonRetriableError marks a failure as a permanent precondition violation:
// the run aborts without consuming further retries.
type NonRetriableError struct {
	Err error
}

// NonRetriable wraps err so the runner aborts instead of retrying.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetriableError{Err: err}
}

func (e *NonRetriableError) Error() string {
	return "non-retriable: " + e.Err.Error()
}

func (e *NonRetriableError) Unwrap() error {
	return e.Err
}

// IsNonRetriable reports whether err (or anything it wraps) is permanent.
func IsNonRetriable(err error) bool {
	var nr *NonRetriableError
	return errors.As(err, &nr)
}

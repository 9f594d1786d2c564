package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spigell/ats-analyzer/internal/ai"
)

// DefaultTimeout bounds a single provider call when no override is configured.
const DefaultTimeout = 30 * time.Second

// Invoker issues exactly one provider call per Invoke and races it against a deadline.
type Invoker struct {
	generator ai.Generator
	timeout   time.Duration
	slots     *semaphore.Weighted
}

type completionResult struct {
	completion ai.Completion
	err        error
}

// NewInvoker creates an Invoker. maxConcurrent <= 0 leaves outbound calls unbounded.
func NewInvoker(generator ai.Generator, timeout time.Duration, maxConcurrent int) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	inv := &Invoker{generator: generator, timeout: timeout}
	if maxConcurrent > 0 {
		inv.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return inv
}

// Timeout reports the configured deadline for a single call.
func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

// Invoke returns ErrTimeout if the deadline passes first and ErrUpstream if the
// provider fails first. A late provider result is discarded.
func (i *Invoker) Invoke(ctx context.Context, prompt string) (ai.Completion, error) {
	if i == nil || i.generator == nil {
		return nil, fmt.Errorf("%w: completion provider is not configured", ErrUpstream)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if i.slots != nil {
		if err := i.slots.Acquire(callCtx, 1); err != nil {
			return nil, i.deadlineError(ctx, err)
		}
	}

	// Buffered so the call goroutine never blocks once nobody is listening.
	done := make(chan completionResult, 1)
	go func() {
		if i.slots != nil {
			defer i.slots.Release(1)
		}
		completion, err := i.generator.Generate(callCtx, prompt)
		done <- completionResult{completion: completion, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if callCtx.Err() != nil {
				return nil, i.deadlineError(ctx, callCtx.Err())
			}
			return nil, fmt.Errorf("%w: %w", ErrUpstream, res.err)
		}
		return res.completion, nil
	case <-callCtx.Done():
		return nil, i.deadlineError(ctx, callCtx.Err())
	}
}

func (i *Invoker) deadlineError(parent context.Context, err error) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUpstream, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, i.timeout)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

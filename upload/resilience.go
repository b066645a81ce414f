package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryBaseDelay is the delay unit between attempts.
const DefaultRetryBaseDelay = 500 * time.Millisecond

// ResilienceOptions tunes RunWithResilience. The zero value runs the
// operation once without a deadline.
type ResilienceOptions struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration

	// OnFailureCleanup runs after every failed attempt, before the next one.
	OnFailureCleanup func(attempt int, err error)
}

// linearBackOff waits base*n before the n-th retry.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// RunWithResilience runs op up to Retries+1 times. Each attempt may be bounded
// by Timeout; an attempt that times out is abandoned, not awaited. Once all
// attempts fail the result is an UPLOAD_FAILED error wrapping the last cause.
func RunWithResilience[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ResilienceOptions) (T, error) {
	var zero T

	retries := max(opts.Retries, 0)
	base := opts.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{base: base}, uint64(retries)), ctx)

	var (
		attempts int
		lastErr  error
	)
	for {
		attempts++
		res, err := runAttempt(ctx, op, opts.Timeout)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if opts.OnFailureCleanup != nil {
			opts.OnFailureCleanup(attempts, err)
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			break
		}
		if !sleep(ctx, next) {
			break
		}
	}

	e := &Error{
		Code:    CodeUploadFailed,
		Message: fmt.Sprintf("upload failed after %d attempt(s): %v", attempts, lastErr),
		Err:     lastErr,
	}
	return zero, e.WithDetail("attempts", attempts).WithDetail("cause", lastErr.Error())
}

func runAttempt[T any](ctx context.Context, op func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	// buffered so an abandoned attempt can still deliver and exit
	done := make(chan result, 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, Wrap(CodeUnknown, err, "upload canceled")
		}
		return zero, Errorf(CodeTimeout, "upload timed out after %s", timeout).
			WithDetail("timeoutMs", timeout.Milliseconds())
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package kwelipay

import (
    "context"
    "errors"
    "log"
    "time"

    "dukalink-payment-api/types"
)

// RetryPolicy wraps a call with bounded exponential-backoff retry on
// transient remote failures (5xx, 429, 408). Attempts run serially; the final
// failure is re-raised unmodified so the caller sees the true remote error.
type RetryPolicy struct {
    MaxRetries int
    BaseDelay  time.Duration

    // sleep is swappable in tests.
    sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(maxRetries int, baseDelay time.Duration) *RetryPolicy {
    return &RetryPolicy{
        MaxRetries: maxRetries,
        BaseDelay:  baseDelay,
        sleep:      sleepContext,
    }
}

// sleepContext waits out the backoff but wakes up immediately when the caller
// cancels.
func sleepContext(ctx context.Context, d time.Duration) error {
    timer := time.NewTimer(d)
    defer timer.Stop()

    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-timer.C:
        return nil
    }
}

// Execute runs fn up to MaxRetries times. Delay before attempt n+1 is
// BaseDelay * 2^(n-1). Non-retriable errors pass through immediately.
func (p *RetryPolicy) Execute(ctx context.Context, label string, fn func() error) error {
    var lastErr error

    for attempt := 1; attempt <= p.MaxRetries; attempt++ {
        lastErr = fn()
        if lastErr == nil {
            return nil
        }

        if !types.IsRetriable(lastErr) {
            return lastErr
        }

        if attempt == p.MaxRetries {
            break
        }

        delay := p.BaseDelay << uint(attempt-1)

        var apiErr *types.APIError
        status := 0
        if errors.As(lastErr, &apiErr) {
            status = apiErr.StatusCode
        }
        log.Printf("Retrying %s after status %d (attempt %d/%d, backing off %v)",
            label, status, attempt, p.MaxRetries, delay)

        if err := p.sleep(ctx, delay); err != nil {
            return err
        }
    }

    return lastErr
}

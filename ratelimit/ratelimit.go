package ratelimit

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/go-redis/redis/v8"

    "dukalink-payment-api/types"
)

const DefaultKey = "global"

// Config holds the rate gate knobs. Disabled turns Attempt into a no-op.
type Config struct {
    MaxRequests int
    Window      time.Duration
    Disabled    bool
}

// RateGate is a fixed-window request counter shared by every caller using the
// same redis backend. The counter resets when the window TTL expires, so a
// burst straddling a window boundary can briefly see up to 2x the nominal
// limit. That imprecision is accepted; do not swap in a sliding window here
// without checking deployment requirements first.
type RateGate struct {
    client *redis.Client
    config Config
}

// Atomic increment that starts the window TTL on first hit. Returns the count
// after increment.
var incrScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    return count
`)

func NewRateGate(client *redis.Client, config Config) *RateGate {
    return &RateGate{client: client, config: config}
}

// NewRateGateFromURL connects its own redis client, mirroring how the job
// queue connects.
func NewRateGateFromURL(redisURL string, config Config) (*RateGate, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("invalid Redis URL for rate gate: %v", err)
    }

    client := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    if err := client.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %v", err)
    }

    return NewRateGate(client, config), nil
}

// Attempt raises a RateLimitError if the key is already at the ceiling for
// the current window, otherwise counts the request. The error pre-empts the
// network call entirely.
func (rg *RateGate) Attempt(ctx context.Context, key string) error {
    if rg.config.Disabled {
        return nil
    }
    if key == "" {
        key = DefaultKey
    }

    count, err := incrScript.Run(ctx, rg.client, []string{rg.redisKey(key)},
        rg.config.Window.Milliseconds()).Int64()
    if err != nil {
        return fmt.Errorf("rate gate check failed: %v", err)
    }

    if count > int64(rg.config.MaxRequests) {
        log.Printf("Rate limit exceeded for key %s (%d/%d in window)", key, count, rg.config.MaxRequests)
        return &types.RateLimitError{
            Key:    key,
            Limit:  rg.config.MaxRequests,
            Window: rg.config.Window.String(),
        }
    }

    return nil
}

// Remaining reports how many requests are left in the current window.
// Diagnostics only; it does not count against the limit.
func (rg *RateGate) Remaining(ctx context.Context, key string) (int, error) {
    if rg.config.Disabled {
        return rg.config.MaxRequests, nil
    }
    if key == "" {
        key = DefaultKey
    }

    count, err := rg.client.Get(ctx, rg.redisKey(key)).Int64()
    if err == redis.Nil {
        return rg.config.MaxRequests, nil
    }
    if err != nil {
        return 0, fmt.Errorf("rate gate read failed: %v", err)
    }

    remaining := rg.config.MaxRequests - int(count)
    if remaining < 0 {
        remaining = 0
    }
    return remaining, nil
}

// Clear resets one key's counter without touching any other key.
func (rg *RateGate) Clear(ctx context.Context, key string) error {
    if rg.config.Disabled {
        return nil
    }
    if key == "" {
        key = DefaultKey
    }
    return rg.client.Del(ctx, rg.redisKey(key)).Err()
}

func (rg *RateGate) redisKey(key string) string {
    return "rate_gate:" + key
}

func (rg *RateGate) Close() error {
    return rg.client.Close()
}

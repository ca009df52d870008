package otcauth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// One round trip, fully atomic: increment, arm the window TTL on the
// first hit, and read back the remaining window. Two concurrent callers
// can never both observe the last free slot.
const checkAndIncrementScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var checkAndIncrementLua = redis.NewScript(checkAndIncrementScript)

// Decision is the outcome of one rate-limiter check.
type Decision struct {
	Allowed bool
	Count   int64
	// ResetAt is when the window counter expires and the caller may retry.
	ResetAt time.Time
}

type codeLimiter struct {
	redis  redis.UniversalClient
	config RateLimitConfig
}

func newCodeLimiter(client redis.UniversalClient, cfg RateLimitConfig) *codeLimiter {
	return &codeLimiter{redis: client, config: cfg}
}

func rateLimitKey(contact string, purpose Purpose) string {
	return "otc:rl:" + string(purpose) + ":" + contact
}

// CheckAndIncrement consumes one slot from the contact's fixed window.
// Fails closed: a Redis error is reported, never treated as an allow.
func (l *codeLimiter) CheckAndIncrement(ctx context.Context, key string, maxCount int, window time.Duration) (Decision, error) {
	raw, err := checkAndIncrementLua.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := raw.([]interface{})
	if !ok || len(parts) != 2 {
		return Decision{}, fmt.Errorf("%w: invalid limiter script response", ErrStoreUnavailable)
	}
	count, ok := parts[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("%w: invalid limiter count", ErrStoreUnavailable)
	}
	ttlMS, ok := parts[1].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("%w: invalid limiter ttl", ErrStoreUnavailable)
	}

	return Decision{
		Allowed: count <= int64(maxCount),
		Count:   count,
		ResetAt: time.Now().Add(time.Duration(ttlMS) * time.Millisecond),
	}, nil
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dfp-neo/backend/internal/autherr"
)

// recordFailureScript increments the counter and sets the lockout in one step.
// KEYS[1] = record key; ARGV = now (ms), max attempts, lockout (ms).
// Returns {locked, lockedUntilMs}.
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local locked = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')
if locked > 0 then
  if now < locked then
    return {1, locked}
  end
  redis.call('DEL', KEYS[1])
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count >= tonumber(ARGV[2]) then
  local untilMs = now + tonumber(ARGV[3])
  redis.call('HSET', KEYS[1], 'locked_until', untilMs)
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {1, untilMs}
end
return {0, 0}
`)

// checkScript returns the lockout end in ms, or 0. An elapsed lockout is cleared.
var checkScript = redis.NewScript(`
local locked = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')
if locked == 0 then
  return 0
end
if tonumber(ARGV[1]) < locked then
  return locked
end
redis.call('DEL', KEYS[1])
return 0
`)

// RedisLimiter shares attempt counters across server instances. Each operation is a
// single Lua script, so concurrent failures for one identity never undercount.
// Only a locked record carries a Redis TTL, set to the lockout window; counters below
// the limit persist until RecordSuccess.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	policy Policy
	nowF   func() time.Time
}

// NewRedisLimiter returns a RedisLimiter storing records under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, p Policy) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		policy: p.normalize(),
		nowF:   time.Now,
	}
}

// WithClock replaces the limiter's clock. Tests only.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.nowF = now
	return l
}

func (l *RedisLimiter) k(identity string) string { return l.prefix + Key(identity) }

func (l *RedisLimiter) Check(ctx context.Context, identity string) error {
	until, err := checkScript.Run(ctx, l.client, []string{l.k(identity)}, l.nowF().UnixMilli()).Int64()
	if err != nil {
		return autherr.Internal(fmt.Errorf("ratelimit: check: %w", err))
	}
	if until > 0 {
		return &autherr.LockedOutError{Until: time.UnixMilli(until).UTC()}
	}
	return nil
}

func (l *RedisLimiter) IsLocked(ctx context.Context, identity string) (bool, error) {
	err := l.Check(ctx, identity)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, autherr.ErrLockedOut) {
		return true, nil
	}
	return false, err
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, identity string) error {
	res, err := recordFailureScript.Run(ctx, l.client, []string{l.k(identity)},
		l.nowF().UnixMilli(), l.policy.MaxAttempts, l.policy.Lockout.Milliseconds()).Int64Slice()
	if err != nil {
		return autherr.Internal(fmt.Errorf("ratelimit: record failure: %w", err))
	}
	if len(res) == 2 && res[0] == 1 {
		return &autherr.LockedOutError{Until: time.UnixMilli(res[1]).UTC()}
	}
	return nil
}

func (l *RedisLimiter) RecordSuccess(ctx context.Context, identity string) error {
	if err := l.client.Del(ctx, l.k(identity)).Err(); err != nil {
		return autherr.Internal(fmt.Errorf("ratelimit: clear: %w", err))
	}
	return nil
}

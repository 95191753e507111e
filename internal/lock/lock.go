// Package lock serializes commission recalculations. Two workers must
// never evaluate the same (organization, bdm, period) at once or the
// upsert could persist a stale deficit chain.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker is a Redis-backed mutual exclusion helper.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// RecalcKey names the lock guarding one BDM's period recalculation.
func RecalcKey(orgID, bdmID uuid.UUID, year, month int) string {
	return fmt.Sprintf("commissions:lock:recalc:%s:%s:%d-%02d", orgID, bdmID, year, month)
}

// WithLock runs fn while holding the named lock, retrying acquisition until
// the context is cancelled. The lock is released when fn returns, even on
// error; if the process dies the TTL expires it.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// release deletes the key only when it still carries our token, so an
// expired lock reacquired by another worker is left alone.
func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("freed-interval lock not acquired")
)

// Locker serializes waitlist processing for one freed interval. Two
// triggers for the same interval (a retried cancellation, or a live
// cancellation racing the expiry sweep) take the same key; the loser
// backs off instead of racing the conditional offer write.
type Locker interface {
	WithIntervalLock(ctx context.Context, practitionerID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error
}

type redisIntervalLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIntervalLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisIntervalLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisIntervalLocker) WithIntervalLock(ctx context.Context, practitionerID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:freed:%s:%d", practitionerID.String(), start.Unix())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire freed-interval lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisIntervalLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release freed-interval lock: %w", err)
	}
	return nil
}

package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("schedule lock not acquired")

// Locker serializes the read-check-write booking sequence per doctor-day.
// Two concurrent bookings for the same doctor and date cannot both be inside
// the critical section, which closes the check-then-act race between the
// conflict pre-check and the write.
type Locker interface {
	WithScheduleLock(ctx context.Context, doctor, date string, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScheduleLocker creates a locker backed by a per doctor-day Redis key.
func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
	}
}

// LockKey normalizes a doctor-day pair into the Redis lock key. Doctor names
// may contain spaces and mixed case; the key must be identical for every
// spelling of the same roster entry.
func LockKey(doctor, date string) string {
	d := strings.ToLower(strings.TrimSpace(doctor))
	d = strings.ReplaceAll(d, " ", "-")
	return fmt.Sprintf("lock:schedule:%s:%s", d, date)
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, doctor, date string, fn func(ctx context.Context) error) error {
	key := LockKey(doctor, date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire schedule lock: %w", err)
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

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}

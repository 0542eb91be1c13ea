package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	ErrLockFailed = errors.New("failed to acquire distributed lock")
)

// Locker serializes tier changes per membership. Two concurrent
// evaluations of the same membership must not interleave between the
// status read and the status write.
type Locker interface {
	Acquire(ctx context.Context, membershipID uint) (release func(), err error)
}

// DistributedLock is a Redis lock using SET NX with an expiry.
// The value identifies the holder so release never deletes a lock that
// another request re-acquired after expiry.
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

// NewDistributedLock creates a distributed lock
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts to acquire the lock without blocking
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock acquires the lock, retrying at the given interval
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock. The check-and-delete runs as a Lua script
// so an expired lock held by someone else is never removed.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// redisLocker implements Locker on Redis, one key per membership
type redisLocker struct {
	client     *redis.Client
	expiration time.Duration
}

// NewRedisLocker creates a Redis-backed membership locker
func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client, expiration: 30 * time.Second}
}

func (r *redisLocker) Acquire(ctx context.Context, membershipID uint) (func(), error) {
	key := fmt.Sprintf("tier:lock:membership:%d", membershipID)
	l := NewDistributedLock(r.client, key, uuid.New().String(), r.expiration)
	if err := l.Lock(ctx, 50*time.Millisecond, 100); err != nil {
		return nil, err
	}
	return func() {
		_ = l.Unlock(context.Background())
	}, nil
}

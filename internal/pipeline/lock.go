package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/pkg/redis"
)

const (
	defaultLockTTL      = 5 * time.Minute
	defaultLockInterval = 250 * time.Millisecond
)

// LocalLock serializes runs within one process.
type LocalLock struct {
	ch chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{ch: make(chan struct{}, 1)}
}

// Lock waits for the lock or for ctx to end.
func (l *LocalLock) Lock(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock serializes runs across processes using SETNX + TTL. The TTL
// bounds how long a crashed holder can block other workers.
type RedisLock struct {
	client   redisStore
	key      string
	ttl      time.Duration
	interval time.Duration
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl, interval: defaultLockInterval}, nil
}

// Lock polls until the key is owned by this caller or ctx ends. The returned
// func releases the key only if this caller still owns it.
func (l *RedisLock) Lock(ctx context.Context) (func(), error) {
	owner := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return func() { _ = l.release(context.Background(), owner) }, nil
		}
		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLock) release(ctx context.Context, owner string) error {
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

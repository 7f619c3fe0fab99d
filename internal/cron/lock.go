package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 55 * time.Minute

// Locker grants at most one cron-worker replica a cycle at a time.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker holds the lock as a SETNX key with a random token. The key
// expires on its own if the holder dies mid-cycle.
type RedisLocker struct {
	store lockStore
	key   string
	ttl   time.Duration
	token func() string
}

func NewRedisLocker(store lockStore, key string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, key: key, ttl: ttl, token: uuid.NewString}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	token := l.token()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error { return l.unlock(ctx, token) }, true, nil
}

// unlock deletes the key only while it still carries our token, so an
// expired lock taken over by another replica is left alone.
func (l *RedisLocker) unlock(ctx context.Context, token string) error {
	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock token: %w", err)
	}
	if current != token {
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

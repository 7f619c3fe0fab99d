package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
	ttl    time.Duration
}

func newMemoryStore() *memoryStore { return &memoryStore{values: map[string]string{}} }

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttl = ttl
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockerIsExclusive(t *testing.T) {
	store := newMemoryStore()
	locker, err := NewRedisLocker(store, "mercadito:lock:cron", 0)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first lock, got ok=%v err=%v", ok, err)
	}
	if store.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttl)
	}
	if _, ok, _ := locker.TryLock(ctx); ok {
		t.Fatal("second lock should fail while held")
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := locker.TryLock(ctx); !ok {
		t.Fatal("lock should be free after unlock")
	}
}

func TestRedisLockerLeavesForeignToken(t *testing.T) {
	store := newMemoryStore()
	locker, err := NewRedisLocker(store, "k", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	ctx := context.Background()
	unlock, _, _ := locker.TryLock(ctx)

	// lock expired and another replica took it over
	store.values["k"] = "someone-else"
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatal("foreign lock was deleted")
	}

	delete(store.values, "k")
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock of missing key: %v", err)
	}
}

func TestNewRedisLockerValidates(t *testing.T) {
	if _, err := NewRedisLocker(nil, "k", 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewRedisLocker(newMemoryStore(), "", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
}

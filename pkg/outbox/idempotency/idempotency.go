package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/redis"
)

// Manager guards side effects that must run at most once per (scope, event).
// Keys look like `mc:idempotency:evt:<scope>:<event_id>`.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim marks (scope, eventID) as taken. It returns false when someone already
// claimed it, in which case the caller must skip the side effect.
func (m *Manager) Claim(ctx context.Context, scope string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(scope, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release drops a claim so a later attempt can retry the side effect.
func (m *Manager) Release(ctx context.Context, scope string, eventID uuid.UUID) error {
	key, err := m.key(scope, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(scope string, eventID uuid.UUID) (string, error) {
	if scope == "" {
		return "", errors.New("scope is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+scope, eventID.String()), nil
}

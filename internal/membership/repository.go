package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fanclub/internal/shared/apperr"

	"github.com/redis/go-redis/v9"
)

// RedisPersistence keeps the committed tier under a per-user key.
type RedisPersistence struct {
	client *redis.Client
	key    string
}

// NewRedisPersistence creates persistence for the given user
func NewRedisPersistence(client *redis.Client, userID string) *RedisPersistence {
	return &RedisPersistence{
		client: client,
		key:    BuildTierKey(userID),
	}
}

// BuildTierKey is the Redis key of a user's committed tier
func BuildTierKey(userID string) string {
	return "fanclub:membership:tier:" + userID
}

func (p *RedisPersistence) Get(ctx context.Context) (string, error) {
	val, err := p.client.Get(ctx, p.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("redis get tier: %w", err)
	}
	return val, nil
}

func (p *RedisPersistence) Set(ctx context.Context, value string) error {
	if err := p.client.Set(ctx, p.key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set tier: %w", err)
	}
	return nil
}

// MemoryPersistence keeps the tier in process memory.
type MemoryPersistence struct {
	mu    sync.Mutex
	value string
	set   bool
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (p *MemoryPersistence) Get(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return "", apperr.ErrNotFound
	}
	return p.value, nil
}

func (p *MemoryPersistence) Set(ctx context.Context, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
	p.set = true
	return nil
}

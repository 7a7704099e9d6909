package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore claves de request ya vistas, con SET NX PX.
type IdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewIdempotencyStore construye el store.
func NewIdempotencyStore(client redis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: "meuagente:idem:"}
}

// SeenOnce registra la clave; seen=true si ya existía dentro del ttl.
func (s *IdempotencyStore) SeenOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency: %w", err)
	}
	return !ok, nil
}

// Forget libera la clave para permitir el reintento.
func (s *IdempotencyStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis idempotency forget: %w", err)
	}
	return nil
}

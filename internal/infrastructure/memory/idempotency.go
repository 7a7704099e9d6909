package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore claves vistas con expiración (un solo proceso).
type IdempotencyStore struct {
	mu  sync.Mutex
	m   map[string]time.Time // key -> expira
	now func() time.Time
}

// NewIdempotencyStore construye el store vacío.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{m: map[string]time.Time{}, now: time.Now}
}

// SeenOnce registra la clave; seen=true si ya estaba vigente.
func (s *IdempotencyStore) SeenOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.m[key]; ok && exp.After(now) {
		return true, nil
	}
	s.m[key] = now.Add(ttl)
	if len(s.m) > 4096 {
		for k, exp := range s.m {
			if !exp.After(now) {
				delete(s.m, k)
			}
		}
	}
	return false, nil
}

// Forget elimina la clave.
func (s *IdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

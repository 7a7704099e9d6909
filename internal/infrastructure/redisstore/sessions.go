package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.SessionStore = (*SessionStore)(nil)

// touchScript guarda el instante (µs) solo si es más nuevo y fija la expiración
// al fin de la ventana. Devuelve el instante vigente.
// KEYS[1] = clave del contacto
// ARGV[1] = instante del mensaje entrante (unix µs)
// ARGV[2] = duración de la ventana (µs)
var touchScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]))
local at = tonumber(ARGV[1])
if (not cur) or at > cur then
    redis.call("SET", KEYS[1], ARGV[1])
    redis.call("PEXPIREAT", KEYS[1], math.floor((at + tonumber(ARGV[2])) / 1000))
    cur = at
end
return cur
`)

// SessionStore ventanas de mensajería compartidas entre réplicas.
// La clave expira con la ventana: un Get de una ventana vencida devuelve nil.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore construye el store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client, prefix: "meuagente:session:"}
}

// Touch abre o extiende la ventana de forma atómica.
func (s *SessionStore) Touch(ctx context.Context, phone string, at time.Time) (entity.MessagingSession, error) {
	res, err := touchScript.Run(ctx, s.client, []string{s.prefix + phone},
		at.UnixMicro(), entity.MessagingWindow.Microseconds()).Int64()
	if err != nil {
		return entity.MessagingSession{}, fmt.Errorf("redis session touch: %w", err)
	}
	return entity.MessagingSession{ContactPhone: phone, WindowOpenedAt: time.UnixMicro(res).UTC()}, nil
}

// Get (nil, nil) si no hay ventana registrada.
func (s *SessionStore) Get(ctx context.Context, phone string) (*entity.MessagingSession, error) {
	v, err := s.client.Get(ctx, s.prefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis session get: %w", err)
	}
	us, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis session get: valor %q: %w", v, err)
	}
	return &entity.MessagingSession{ContactPhone: phone, WindowOpenedAt: time.UnixMicro(us).UTC()}, nil
}

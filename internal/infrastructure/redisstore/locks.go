package redisstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.UserLocks = (*UserLocks)(nil)

// sharedScript registra un escritor salvo que haya una restauración marcada.
// Cada escritor es un miembro del ZSET con score = vencimiento de su lease (ms).
// KEYS[1] = marca de restauración, KEYS[2] = ZSET de escritores
// ARGV[1] = token, ARGV[2] = ahora (ms), ARGV[3] = vencimiento (ms), ARGV[4] = lease (ms)
var sharedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
redis.call("PEXPIRE", KEYS[2], ARGV[4])
return 1
`)

// renewSharedScript extiende el lease de un escritor que sigue vivo.
var renewSharedScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[1], ARGV[1]) == false then
    return 0
end
redis.call("ZADD", KEYS[1], "XX", ARGV[2], ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// liveWritersScript descarta los leases vencidos y cuenta los vivos.
var liveWritersScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
return redis.call("ZCARD", KEYS[1])
`)

// renewExclusiveScript extiende la marca solo si sigue siendo la nuestra.
var renewExclusiveScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseExclusiveScript borra la marca solo si sigue siendo la nuestra.
var releaseExclusiveScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLocks lock lectores/escritor por usuario entre réplicas.
// La restauración deja una marca con lease y cada escritor su propio lease en
// un ZSET. Quien tiene el lock lo renueva mientras corre; un proceso caído deja
// de renovar y su lease vence sin bloquear a los demás.
type UserLocks struct {
	client       redis.UniversalClient
	prefix       string
	sharedLease  time.Duration
	restoreLease time.Duration
	renewEvery   time.Duration
	poll         time.Duration
	now          func() time.Time
}

// NewUserLocks construye el adaptador.
func NewUserLocks(client redis.UniversalClient) *UserLocks {
	return &UserLocks{
		client:       client,
		prefix:       "meuagente:lock:",
		sharedLease:  5 * time.Minute,
		restoreLease: 10 * time.Minute,
		renewEvery:   time.Minute,
		poll:         50 * time.Millisecond,
		now:          time.Now,
	}
}

// WithLease ajusta la duración de los leases y cada cuánto se renuevan.
func (l *UserLocks) WithLease(lease, renewEvery time.Duration) *UserLocks {
	l.sharedLease, l.restoreLease, l.renewEvery = lease, lease, renewEvery
	return l
}

func (l *UserLocks) keys(userID string) (restore, writers string) {
	return l.prefix + userID + ":restore", l.prefix + userID + ":writers"
}

func (l *UserLocks) nowMs() int64 { return l.now().UnixMilli() }

func (l *UserLocks) sharedExpiry() int64 { return l.now().Add(l.sharedLease).UnixMilli() }

// Shared falla con ErrRestoreInProgress si hay una restauración marcada.
func (l *UserLocks) Shared(ctx context.Context, userID string) (ports.Release, error) {
	restore, writers := l.keys(userID)
	token := uuid.New().String()
	ok, err := sharedScript.Run(ctx, l.client, []string{restore, writers}, token, l.nowMs(), l.sharedExpiry(), l.sharedLease.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("redis lock shared: %w", err)
	}
	if ok == 0 {
		return nil, domain.ErrRestoreInProgress
	}
	stop := l.keepAlive(func(ctx context.Context) error {
		return renewSharedScript.Run(ctx, l.client, []string{writers}, token, l.sharedExpiry(), l.sharedLease.Milliseconds()).Err()
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			_ = l.client.ZRem(context.Background(), writers, token).Err()
		})
	}, nil
}

// Exclusive marca la restauración con SET NX y espera a que no quede ningún
// escritor con lease vigente.
func (l *UserLocks) Exclusive(ctx context.Context, userID string) (ports.Release, error) {
	restore, writers := l.keys(userID)
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, restore, token, l.restoreLease).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock exclusive: %w", err)
	}
	if !ok {
		return nil, domain.ErrRestoreInProgress
	}
	stop := l.keepAlive(func(ctx context.Context) error {
		return renewExclusiveScript.Run(ctx, l.client, []string{restore}, token, l.restoreLease.Milliseconds()).Err()
	})
	release := func() {
		stop()
		_ = releaseExclusiveScript.Run(context.Background(), l.client, []string{restore}, token).Err()
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		n, err := liveWritersScript.Run(ctx, l.client, []string{writers}, l.nowMs()).Int()
		if err != nil {
			release()
			return nil, fmt.Errorf("redis lock exclusive: %w", err)
		}
		if n == 0 {
			break
		}
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// keepAlive renueva el lease en segundo plano hasta que se llame a stop.
func (l *UserLocks) keepAlive(renew func(ctx context.Context) error) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = renew(ctx)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

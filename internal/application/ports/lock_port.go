package ports

import (
	"context"
	"time"
)

// Release libera un lock adquirido. Es seguro llamarla más de una vez.
type Release func()

// UserLocks lock por usuario entre restauración y escrituras.
// Exclusive lo toma la restauración; Shared lo toman las operaciones que escriben
// datos del usuario. Shared falla de inmediato con domain.ErrRestoreInProgress
// mientras haya una restauración en curso; Exclusive espera a que terminen los
// Shared activos.
type UserLocks interface {
	Exclusive(ctx context.Context, userID string) (Release, error)
	Shared(ctx context.Context, userID string) (Release, error)
}

// IdempotencyStore permite a un sub-agente descartar un reintento con el mismo request id.
// SeenOnce devuelve seen=true si la clave ya se registró dentro del ttl.
// Forget libera la clave cuando el efecto falló y debe poder reintentarse.
type IdempotencyStore interface {
	SeenOnce(ctx context.Context, key string, ttl time.Duration) (seen bool, err error)
	Forget(ctx context.Context, key string) error
}

package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

const idempotencyTTL = 24 * time.Hour

// runOnce ejecuta fn una sola vez por key. dup=true si otra ejecución con la
// misma key ya tuvo éxito. Si fn falla la key se libera para el reintento.
func runOnce(ctx context.Context, store ports.IdempotencyStore, key string, fn func() error) (dup bool, err error) {
	if store == nil || key == "" {
		return false, fn()
	}
	seen, err := store.SeenOnce(ctx, key, idempotencyTTL)
	if err != nil {
		return false, egress.Retryable(fmt.Errorf("idempotencia: %w", err))
	}
	if seen {
		return true, nil
	}
	if err := fn(); err != nil {
		_ = store.Forget(context.WithoutCancel(ctx), key)
		return false, err
	}
	return false, nil
}

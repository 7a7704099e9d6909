package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo log append-only en memoria.
type AuditRepo struct {
	mu      sync.RWMutex
	entries []entity.AuditEntry
}

// NewAuditRepository construye el log vacío.
func NewAuditRepository() *AuditRepo {
	return &AuditRepo{}
}

// Append agrega al final.
func (r *AuditRepo) Append(_ context.Context, e *entity.AuditEntry) error {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	r.mu.Lock()
	r.entries = append(r.entries, cp)
	r.mu.Unlock()
	return nil
}

// ListByActor más recientes primero.
func (r *AuditRepo) ListByActor(_ context.Context, actorUserID string, limit, offset int) ([]*entity.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.AuditEntry
	skipped := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.ActorUserID != actorUserID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All copia del log completo (tests y diagnóstico).
func (r *AuditRepo) All() []entity.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.AuditEntry(nil), r.entries...)
}

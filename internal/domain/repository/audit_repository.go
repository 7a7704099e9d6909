package repository

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// AuditRepository almacenamiento append-only: no expone Update ni Delete.
type AuditRepository interface {
	Append(ctx context.Context, e *entity.AuditEntry) error
	ListByActor(ctx context.Context, actorUserID string, limit, offset int) ([]*entity.AuditEntry, error)
}

package repository

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// BackupRepository registros de backup. Update debe rechazar cambios sobre un
// registro ya completed (domain.ErrBackupImmutable).
type BackupRepository interface {
	Create(ctx context.Context, rec *entity.BackupRecord) error
	Update(ctx context.Context, rec *entity.BackupRecord) error
	GetByID(ctx context.Context, id string) (*entity.BackupRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.BackupRecord, error)
	// ListCompleted backups completed del tipo dado, más recientes primero.
	ListCompleted(ctx context.Context, userID string, kind entity.BackupKind, limit int) ([]*entity.BackupRecord, error)
}

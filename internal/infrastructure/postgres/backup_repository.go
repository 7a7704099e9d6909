package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.BackupRepository = (*BackupRepo)(nil)

const backupColumns = `id, user_id, kind, status, size_bytes, checksum, content_checksum, record_count, storage_location, failed_step, created_at, completed_at`

// BackupRepo registros de backup. Un registro completed no se vuelve a tocar.
type BackupRepo struct {
	q Querier
}

// NewBackupRepository construye el adaptador.
func NewBackupRepository(q Querier) *BackupRepo {
	return &BackupRepo{q: q}
}

// Create inserta el registro (normalmente en pending).
func (r *BackupRepo) Create(ctx context.Context, b *entity.BackupRecord) error {
	_, err := r.q.Exec(ctx, `INSERT INTO backups (`+backupColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.UserID, string(b.Kind), string(b.Status), b.SizeBytes, b.Checksum, b.ContentChecksum,
		b.RecordCount, b.StorageLocation, b.FailedStep, b.CreatedAt, b.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

// Update guarda el estado; el WHERE excluye los registros ya completed.
func (r *BackupRepo) Update(ctx context.Context, b *entity.BackupRecord) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE backups SET status = $2, size_bytes = $3, checksum = $4, content_checksum = $5,
			record_count = $6, storage_location = $7, failed_step = $8, completed_at = $9
		WHERE id = $1 AND status <> 'completed'`,
		b.ID, string(b.Status), b.SizeBytes, b.Checksum, b.ContentChecksum,
		b.RecordCount, b.StorageLocation, b.FailedStep, b.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	existing, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrBackupNotFound
	}
	return domain.ErrBackupImmutable
}

// GetByID (nil, nil) si no existe.
func (r *BackupRepo) GetByID(ctx context.Context, id string) (*entity.BackupRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	b, err := pgx.CollectOneRow(rows, scanBackup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

// ListByUser más recientes primero.
func (r *BackupRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.BackupRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+backupColumns+` FROM backups
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanBackup)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return out, nil
}

// ListCompleted más recientes primero.
func (r *BackupRepo) ListCompleted(ctx context.Context, userID string, kind entity.BackupKind, limit int) ([]*entity.BackupRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+backupColumns+` FROM backups
		WHERE user_id = $1 AND kind = $2 AND status = 'completed'
		ORDER BY created_at DESC, id DESC LIMIT $3`, userID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list completed backups: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanBackup)
	if err != nil {
		return nil, fmt.Errorf("list completed backups: %w", err)
	}
	return out, nil
}

func scanBackup(row pgx.CollectableRow) (*entity.BackupRecord, error) {
	var b entity.BackupRecord
	var kind, status string
	err := row.Scan(&b.ID, &b.UserID, &kind, &status, &b.SizeBytes, &b.Checksum, &b.ContentChecksum,
		&b.RecordCount, &b.StorageLocation, &b.FailedStep, &b.CreatedAt, &b.CompletedAt)
	b.Kind, b.Status = entity.BackupKind(kind), entity.BackupStatus(status)
	return &b, err
}

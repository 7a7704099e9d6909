package backup

import (
	"context"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// RetainedAutomatic backups automáticos completados que se ofrecen por usuario.
// Los registros y artefactos más viejos no se tocan (son inmutables); quedan
// reemplazados y dejan de listarse, descargarse o restaurarse. El borrado físico
// del blob es una regla de ciclo de vida del bucket.
const RetainedAutomatic = 30

// retained ids de los backups automáticos dentro de la retención.
func (o *Orchestrator) retained(ctx context.Context, userID string) (map[string]struct{}, error) {
	kept, err := o.backups.ListCompleted(ctx, userID, entity.BackupAutomatic, RetainedAutomatic)
	if err != nil {
		return nil, fmt.Errorf("backup: retención: %w", err)
	}
	ids := make(map[string]struct{}, len(kept))
	for _, r := range kept {
		ids[r.ID] = struct{}{}
	}
	return ids, nil
}

func superseded(rec *entity.BackupRecord, kept map[string]struct{}) bool {
	if rec.Kind != entity.BackupAutomatic || rec.Status != entity.BackupCompleted {
		return false
	}
	_, ok := kept[rec.ID]
	return !ok
}

// logSuperseded anota el automático que acaba de salir de la retención.
func (o *Orchestrator) logSuperseded(ctx context.Context, userID string) {
	recs, err := o.backups.ListCompleted(ctx, userID, entity.BackupAutomatic, RetainedAutomatic+1)
	if err != nil || len(recs) <= RetainedAutomatic {
		return
	}
	old := recs[RetainedAutomatic]
	o.log.Info().Str("user_id", userID).Str("backup_id", old.ID).Str("location", old.StorageLocation).
		Msg("backup automático fuera de la retención")
}

// restorable busca un backup del usuario que todavía pueda usarse.
// Ajeno o inexistente da ErrBackupNotFound; fallido, pendiente o reemplazado
// da ErrBackupNotRestorable.
func (o *Orchestrator) restorable(ctx context.Context, userID, backupID string) (*entity.BackupRecord, error) {
	rec, err := o.backups.GetByID(ctx, backupID)
	if err != nil {
		return nil, fmt.Errorf("backup: leer registro: %w", err)
	}
	if rec == nil || rec.UserID != userID {
		return nil, domain.ErrBackupNotFound
	}
	if !rec.Restorable() {
		return nil, fmt.Errorf("%w: estado %s", domain.ErrBackupNotRestorable, rec.Status)
	}
	kept, err := o.retained(ctx, userID)
	if err != nil {
		return nil, err
	}
	if superseded(rec, kept) {
		return nil, fmt.Errorf("%w: fuera de los últimos %d automáticos", domain.ErrBackupNotRestorable, RetainedAutomatic)
	}
	return rec, nil
}

// Download devuelve el snapshot JSON canónico de un backup completado, ya
// descifrado y verificado contra los checksums del registro.
func (o *Orchestrator) Download(ctx context.Context, userID, backupID string) ([]byte, *entity.BackupRecord, error) {
	content, rec, err := o.download(ctx, userID, backupID)
	if err != nil {
		if d, ok := entitlement.AsDenied(err); ok {
			o.record(ctx, userID, entity.ActionBackupDownload, backupID, entity.OutcomeDenied, d.Error(), nil)
		} else {
			o.record(ctx, userID, entity.ActionBackupDownload, backupID, entity.OutcomeError, err.Error(), nil)
		}
		return nil, nil, err
	}
	o.record(ctx, userID, entity.ActionBackupDownload, backupID, entity.OutcomeAllowed, "", map[string]string{
		"checksum": rec.ContentChecksum,
	})
	return content, rec, nil
}

func (o *Orchestrator) download(ctx context.Context, userID, backupID string) ([]byte, *entity.BackupRecord, error) {
	if err := o.entitlements.Require(ctx, userID, entity.CapBackupAutomatic); err != nil {
		return nil, nil, err
	}
	rec, err := o.restorable(ctx, userID, backupID)
	if err != nil {
		return nil, nil, err
	}
	content, err := o.verify(ctx, rec)
	if err != nil {
		return nil, nil, fmt.Errorf("download: %w", err)
	}
	return content, rec, nil
}

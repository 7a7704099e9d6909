package backup

import (
	"context"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// RestoreResult resumen de una restauración exitosa.
type RestoreResult struct {
	BackupID        string
	RecordCount     int
	ContentChecksum string
}

// Restore reemplaza los registros financieros del usuario por los del backup.
// El artefacto se verifica antes de tomar el lock; el reemplazo es atómico y se
// comprueba después (cantidad y checksum del contenido iguales a los del backup).
func (o *Orchestrator) Restore(ctx context.Context, userID, backupID string) (*RestoreResult, error) {
	res, err := o.restore(ctx, userID, backupID)
	if err != nil {
		if d, ok := entitlement.AsDenied(err); ok {
			o.record(ctx, userID, entity.ActionBackupRestore, backupID, entity.OutcomeDenied, d.Error(), nil)
		} else {
			o.record(ctx, userID, entity.ActionBackupRestore, backupID, entity.OutcomeError, err.Error(), nil)
		}
		return nil, err
	}
	o.record(ctx, userID, entity.ActionBackupRestore, backupID, entity.OutcomeAllowed, "", map[string]string{
		"record_count": fmt.Sprint(res.RecordCount),
		"checksum":     res.ContentChecksum,
	})
	return res, nil
}

func (o *Orchestrator) restore(ctx context.Context, userID, backupID string) (*RestoreResult, error) {
	if err := o.entitlements.Require(ctx, userID, entity.CapBackupAutomatic); err != nil {
		return nil, err
	}
	rec, err := o.restorable(ctx, userID, backupID)
	if err != nil {
		return nil, err
	}

	content, err := o.verify(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	records, err := DecodeSnapshot(userID, content)
	if err != nil {
		return nil, err
	}
	if len(records) != rec.RecordCount {
		return nil, fmt.Errorf("%w: el snapshot tiene %d registros, el backup %d", domain.ErrBackupIntegrity, len(records), rec.RecordCount)
	}

	release, err := o.locks.Exclusive(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := func() ([]*entity.FinancialRecord, error) {
		defer release()
		if err := o.records.ReplaceAll(ctx, userID, records); err != nil {
			return nil, fmt.Errorf("restore: reemplazar registros: %w", err)
		}
		return o.records.ListByUser(ctx, userID)
	}()
	if err != nil {
		return nil, err
	}

	after, err := EncodeSnapshot(userID, current)
	if err != nil {
		return nil, err
	}
	if len(current) != rec.RecordCount || Checksum(after) != rec.ContentChecksum {
		return nil, fmt.Errorf("%w: los datos restaurados no coinciden con el backup %s", domain.ErrBackupIntegrity, rec.ID)
	}
	o.log.Info().Str("backup_id", rec.ID).Str("user_id", userID).Int("records", len(current)).Msg("restauración completada")
	return &RestoreResult{BackupID: rec.ID, RecordCount: len(current), ContentChecksum: rec.ContentChecksum}, nil
}

package agents

import (
	"context"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// IntentBackup backup manual pedido por comando.
const IntentBackup = "backup"

// ManualBackupTrigger orquestador de backups (backup.Orchestrator).
type ManualBackupTrigger interface {
	TriggerManual(ctx context.Context, userID string) (*entity.BackupRecord, error)
}

// BackupAgent dispara un backup manual. El orquestador vuelve a exigir
// backup.manual: el agente no abre otra vía.
type BackupAgent struct {
	orchestrator ManualBackupTrigger
}

// NewBackupAgent construye el agente.
func NewBackupAgent(o ManualBackupTrigger) *BackupAgent {
	return &BackupAgent{orchestrator: o}
}

// BackupDescriptor descriptor del agente de backup.
func BackupDescriptor() Descriptor {
	return Descriptor{
		ID:                 IntentBackup,
		RequiredCapability: entity.CapBackupManual,
		PayloadSchema:      `{"type": "object", "additionalProperties": false}`,
	}
}

// Descriptor implementa Agent.
func (a *BackupAgent) Descriptor() Descriptor { return BackupDescriptor() }

// Execute implementa Agent.
func (a *BackupAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	rec, err := a.orchestrator.TriggerManual(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return JSONResult("Backup concluído e verificado.", map[string]any{
		"backup_id":    rec.ID,
		"checksum":     rec.Checksum,
		"size_bytes":   rec.SizeBytes,
		"record_count": rec.RecordCount,
	})
}

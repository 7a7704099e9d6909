package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// Entitlements lo que el orquestador necesita del resolver.
type Entitlements interface {
	Require(ctx context.Context, userID string, capability entity.Capability) error
}

// Orchestrator backups off-site y restauración.
// Estados de una corrida: Idle → Running → Verifying → {Completed | Failed}.
// Un fallo en cualquier paso deja el registro en failed con el paso anotado;
// nunca queda un registro completed sin verificar.
type Orchestrator struct {
	entitlements Entitlements
	records      repository.FinancialRecordRepository
	backups      repository.BackupRepository
	store        ports.BlobStore
	cipher       ports.Cipher
	locks        ports.UserLocks
	audit        *audit.Service
	log          zerolog.Logger
	now          func() time.Time
}

// Deps dependencias del orquestador.
type Deps struct {
	Entitlements Entitlements
	Records      repository.FinancialRecordRepository
	Backups      repository.BackupRepository
	Store        ports.BlobStore
	Cipher       ports.Cipher
	Locks        ports.UserLocks
	Audit        *audit.Service
	Log          zerolog.Logger
}

// NewOrchestrator construye el orquestador.
func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		entitlements: d.Entitlements,
		records:      d.Records,
		backups:      d.Backups,
		store:        d.Store,
		cipher:       d.Cipher,
		locks:        d.Locks,
		audit:        d.Audit,
		log:          d.Log,
		now:          time.Now,
	}
}

// TriggerManual backup pedido por el usuario. Exige backup.manual antes de tocar
// cualquier dato: una negación no crea ningún registro.
func (o *Orchestrator) TriggerManual(ctx context.Context, userID string) (*entity.BackupRecord, error) {
	return o.gated(ctx, userID, entity.BackupManual, entity.CapBackupManual, entity.ActionBackupManual)
}

// RunAutomatic backup diario del scheduler. Exige backup.automatic.
func (o *Orchestrator) RunAutomatic(ctx context.Context, userID string) (*entity.BackupRecord, error) {
	rec, err := o.gated(ctx, userID, entity.BackupAutomatic, entity.CapBackupAutomatic, entity.ActionBackupAutomatic)
	if err == nil {
		o.logSuperseded(ctx, userID)
	}
	return rec, err
}

// List backups del usuario, más recientes primero. Los automáticos fuera de
// la retención no se listan.
func (o *Orchestrator) List(ctx context.Context, userID string, limit int) ([]*entity.BackupRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	kept, err := o.retained(ctx, userID)
	if err != nil {
		return nil, err
	}
	// los reemplazados se saltan; si la página no alcanza se pide una más grande
	for n := limit + len(kept); ; n *= 2 {
		all, err := o.backups.ListByUser(ctx, userID, n)
		if err != nil {
			return nil, err
		}
		out := make([]*entity.BackupRecord, 0, limit)
		for _, r := range all {
			if superseded(r, kept) {
				continue
			}
			if out = append(out, r); len(out) == limit {
				break
			}
		}
		if len(out) == limit || len(all) < n {
			return out, nil
		}
	}
}

// WithClock reemplaza el reloj (tests).
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) gated(ctx context.Context, userID string, kind entity.BackupKind, capability entity.Capability, action string) (*entity.BackupRecord, error) {
	if err := o.entitlements.Require(ctx, userID, capability); err != nil {
		if d, ok := entitlement.AsDenied(err); ok {
			o.record(ctx, userID, action, userID, entity.OutcomeDenied, d.Error(), nil)
		}
		return nil, err
	}
	release, err := o.locks.Shared(ctx, userID)
	if err != nil {
		o.record(ctx, userID, action, userID, entity.OutcomeError, err.Error(), nil)
		return nil, err
	}
	defer release()
	return o.run(ctx, userID, kind, action)
}

// run ejecuta el pipeline snapshot → checksum → encrypt → upload → verify → persist.
func (o *Orchestrator) run(ctx context.Context, userID string, kind entity.BackupKind, action string) (*entity.BackupRecord, error) {
	rec := &entity.BackupRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Status:    entity.BackupPending,
		CreatedAt: o.now().UTC(),
	}
	if err := o.backups.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("backup: crear registro: %w", err)
	}
	log := o.log.With().Str("backup_id", rec.ID).Str("user_id", userID).Str("kind", string(kind)).Logger()
	log.Debug().Str("state", "running").Msg("backup iniciado")

	step := entity.StepSnapshot
	fail := func(err error) (*entity.BackupRecord, error) {
		return nil, o.markFailed(ctx, rec, step, action, err, log)
	}

	records, err := o.records.ListByUser(ctx, userID)
	if err != nil {
		return fail(err)
	}
	content, err := EncodeSnapshot(userID, records)
	if err != nil {
		return fail(err)
	}

	step = entity.StepChecksum
	rec.ContentChecksum = Checksum(content)
	rec.RecordCount = len(records)

	step = entity.StepEncrypt
	artifact, err := o.cipher.Seal(userID, content)
	if err != nil {
		return fail(err)
	}
	rec.Checksum = Checksum(artifact)
	rec.SizeBytes = int64(len(artifact))

	step = entity.StepUpload
	location, err := o.store.Put(ctx, fmt.Sprintf("%s/%s.mab", userID, rec.ID), artifact)
	if err != nil {
		return fail(err)
	}
	rec.StorageLocation = location

	step = entity.StepVerify
	log.Debug().Str("state", "verifying").Msg("verificando artefacto")
	if _, err := o.verify(ctx, rec); err != nil {
		return fail(err)
	}

	step = entity.StepPersist
	completedAt := o.now().UTC()
	rec.Status = entity.BackupCompleted
	rec.CompletedAt = &completedAt
	if err := o.backups.Update(ctx, rec); err != nil {
		rec.Status = entity.BackupPending
		rec.CompletedAt = nil
		return fail(err)
	}

	log.Info().Str("state", "completed").Str("checksum", rec.Checksum).Int64("size_bytes", rec.SizeBytes).Msg("backup completado")
	o.record(ctx, userID, action, rec.ID, entity.OutcomeAllowed, "", map[string]string{
		"checksum": rec.Checksum,
		"location": rec.StorageLocation,
	})
	return rec, nil
}

// verify relee el artefacto, recalcula ambos checksums y devuelve el contenido en claro.
func (o *Orchestrator) verify(ctx context.Context, rec *entity.BackupRecord) ([]byte, error) {
	blob, err := o.store.Get(ctx, rec.StorageLocation)
	if err != nil {
		return nil, fmt.Errorf("leer artefacto: %w", err)
	}
	if got := Checksum(blob); got != rec.Checksum {
		return nil, fmt.Errorf("%w: checksum del artefacto %s != %s", domain.ErrBackupIntegrity, got, rec.Checksum)
	}
	content, err := o.cipher.Open(rec.UserID, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackupIntegrity, err)
	}
	if got := Checksum(content); got != rec.ContentChecksum {
		return nil, fmt.Errorf("%w: checksum del contenido %s != %s", domain.ErrBackupIntegrity, got, rec.ContentChecksum)
	}
	return content, nil
}

// markFailed deja el registro en failed con el paso que falló y audita el error.
func (o *Orchestrator) markFailed(ctx context.Context, rec *entity.BackupRecord, step, action string, cause error, log zerolog.Logger) error {
	rec.Status = entity.BackupFailed
	rec.FailedStep = step
	if err := o.backups.Update(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Msg("no se pudo marcar el backup como failed")
	}
	log.Error().Err(cause).Str("step", step).Str("state", "failed").Msg("backup fallido")
	o.record(ctx, rec.UserID, action, rec.ID, entity.OutcomeError, step+": "+cause.Error(), map[string]string{"step": step})
	return &StepError{Step: step, Err: cause}
}

func (o *Orchestrator) record(ctx context.Context, actor, action, subject string, outcome entity.AuditOutcome, reason string, meta map[string]string) {
	if err := o.audit.Record(context.WithoutCancel(ctx), actor, action, subject, outcome, reason, meta); err != nil {
		o.log.Error().Err(err).Str("action", action).Msg("no se pudo auditar")
	}
}

// StepError fallo de un paso del pipeline.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("backup: paso %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// FailedStep paso que falló, si err viene del pipeline.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

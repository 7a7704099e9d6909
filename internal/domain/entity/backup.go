package entity

import "time"

// BackupKind origen del backup.
type BackupKind string

const (
	BackupAutomatic BackupKind = "automatic"
	BackupManual    BackupKind = "manual"
)

// BackupStatus estado persistido del registro.
type BackupStatus string

const (
	BackupPending   BackupStatus = "pending"
	BackupCompleted BackupStatus = "completed"
	BackupFailed    BackupStatus = "failed"
)

// Pasos del pipeline; se guardan en FailedStep cuando uno falla.
const (
	StepSnapshot = "snapshot"
	StepChecksum = "checksum"
	StepEncrypt  = "encrypt"
	StepUpload   = "upload"
	StepVerify   = "verify"
	StepPersist  = "persist"
)

// BackupRecord artefacto off-site de los datos de un usuario.
// Inmutable una vez completed: nunca se modifica, solo se reemplaza por uno más nuevo.
type BackupRecord struct {
	ID              string
	UserID          string
	Kind            BackupKind
	Status          BackupStatus
	SizeBytes       int64
	Checksum        string // sha256 del artefacto almacenado (cifrado)
	ContentChecksum string // sha256 del snapshot en claro
	RecordCount     int
	StorageLocation string
	FailedStep      string
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Restorable informa si el backup puede usarse para restaurar.
func (b *BackupRecord) Restorable() bool {
	return b != nil && b.Status == BackupCompleted && b.StorageLocation != ""
}

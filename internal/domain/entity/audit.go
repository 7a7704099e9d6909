package entity

import "time"

// AuditOutcome resultado registrado.
type AuditOutcome string

const (
	OutcomeAllowed AuditOutcome = "allowed"
	OutcomeDenied  AuditOutcome = "denied"
	OutcomeError   AuditOutcome = "error"
)

// Acciones auditadas fuera del router (las del router usan "command.<intent>").
const (
	ActionBackupManual    = "backup.manual"
	ActionBackupAutomatic = "backup.automatic"
	ActionBackupRestore   = "backup.restore"
	ActionBackupDownload  = "backup.download"
	ActionDataErased      = "data.erased"
	ActionPlanChanged     = "plan.changed"
	ActionCatalogUpdated  = "catalog.updated"
)

// AuditEntry registro append-only. Nunca se edita ni se borra.
type AuditEntry struct {
	ID          string            `json:"id"`
	ActorUserID string            `json:"actor_user_id"`
	Action      string            `json:"action"`
	SubjectID   string            `json:"subject_id"`
	Outcome     AuditOutcome      `json:"outcome"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

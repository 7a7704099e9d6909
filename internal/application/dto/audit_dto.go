package dto

import "time"

// AuditEntryResponse entrada de auditoría propia del usuario.
type AuditEntryResponse struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	SubjectID string            `json:"subject_id"`
	Outcome   string            `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditListResponse página de auditoría.
type AuditListResponse struct {
	Items []AuditEntryResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}

package dto

import "time"

// BackupResponse registro de backup expuesto al usuario.
type BackupResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	SizeBytes   int64      `json:"size_bytes"`
	Checksum    string     `json:"checksum"`
	RecordCount int        `json:"record_count"`
	FailedStep  string     `json:"failed_step,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RestoreResponse resultado de una restauración.
type RestoreResponse struct {
	BackupID        string `json:"backup_id"`
	RecordCount     int    `json:"record_count"`
	ContentChecksum string `json:"content_checksum"`
}

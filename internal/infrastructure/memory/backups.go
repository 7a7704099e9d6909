package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.BackupRepository = (*BackupRepo)(nil)

// BackupRepo registros de backup en memoria.
type BackupRepo struct {
	mu   sync.RWMutex
	byID map[string]entity.BackupRecord
}

// NewBackupRepository construye el repositorio vacío.
func NewBackupRepository() *BackupRepo {
	return &BackupRepo{byID: map[string]entity.BackupRecord{}}
}

// Create guarda un registro nuevo.
func (r *BackupRepo) Create(_ context.Context, rec *entity.BackupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[rec.ID]; ok {
		return domain.ErrConflict
	}
	r.byID[rec.ID] = *rec
	return nil
}

// Update rechaza cambios sobre un registro completed.
func (r *BackupRepo) Update(_ context.Context, rec *entity.BackupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[rec.ID]
	if !ok {
		return domain.ErrBackupNotFound
	}
	if cur.Status == entity.BackupCompleted {
		return domain.ErrBackupImmutable
	}
	r.byID[rec.ID] = *rec
	return nil
}

// GetByID (nil, nil) si no existe.
func (r *BackupRepo) GetByID(_ context.Context, id string) (*entity.BackupRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListByUser más recientes primero.
func (r *BackupRepo) ListByUser(_ context.Context, userID string, limit int) ([]*entity.BackupRecord, error) {
	return r.list(limit, func(rec entity.BackupRecord) bool { return rec.UserID == userID }), nil
}

// ListCompleted más recientes primero.
func (r *BackupRepo) ListCompleted(_ context.Context, userID string, kind entity.BackupKind, limit int) ([]*entity.BackupRecord, error) {
	return r.list(limit, func(rec entity.BackupRecord) bool {
		return rec.UserID == userID && rec.Kind == kind && rec.Status == entity.BackupCompleted
	}), nil
}

func (r *BackupRepo) list(limit int, keep func(entity.BackupRecord) bool) []*entity.BackupRecord {
	r.mu.RLock()
	var out []*entity.BackupRecord
	for _, rec := range r.byID {
		if keep(rec) {
			rec := rec
			out = append(out, &rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

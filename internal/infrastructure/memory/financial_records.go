package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.FinancialRecordRepository = (*FinancialRecordRepo)(nil)

// FinancialRecordRepo registros por usuario. Cada usuario apunta a una
// generación (slice) que nunca se modifica en sitio: ReplaceAll arma la
// generación nueva aparte y cambia el puntero.
type FinancialRecordRepo struct {
	mu    sync.RWMutex
	heads map[string][]entity.FinancialRecord
}

// NewFinancialRecordRepository construye el repositorio vacío.
func NewFinancialRecordRepository() *FinancialRecordRepo {
	return &FinancialRecordRepo{heads: map[string][]entity.FinancialRecord{}}
}

// Create agrega un registro (copia la generación actual).
func (r *FinancialRecordRepo) Create(_ context.Context, rec *entity.FinancialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.heads[rec.UserID]
	next := make([]entity.FinancialRecord, len(cur), len(cur)+1)
	copy(next, cur)
	r.heads[rec.UserID] = append(next, *rec)
	return nil
}

// ListByUser registros del usuario ordenados por fecha e ID.
func (r *FinancialRecordRepo) ListByUser(_ context.Context, userID string) ([]*entity.FinancialRecord, error) {
	r.mu.RLock()
	cur := r.heads[userID]
	r.mu.RUnlock()
	out := make([]*entity.FinancialRecord, len(cur))
	for i := range cur {
		rec := cur[i]
		out[i] = &rec
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ReplaceAll prepara la generación nueva fuera del lock y la publica con un solo swap.
func (r *FinancialRecordRepo) ReplaceAll(ctx context.Context, userID string, records []*entity.FinancialRecord) error {
	staged := make([]entity.FinancialRecord, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		cp := *rec
		cp.UserID = userID
		staged = append(staged, cp)
	}
	r.mu.Lock()
	r.heads[userID] = staged
	r.mu.Unlock()
	return nil
}

package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.PlanRepository = (*PlanRepo)(nil)

// PlanRepo matriz de planes en memoria.
type PlanRepo struct {
	mu      sync.Mutex
	version int64
	tiers   map[entity.PlanTier][]entity.Capability
}

// NewPlanRepository arranca con la matriz dada como versión 1.
func NewPlanRepository(matrix map[entity.PlanTier][]entity.Capability) *PlanRepo {
	tiers := make(map[entity.PlanTier][]entity.Capability, len(matrix))
	for t, caps := range matrix {
		tiers[t] = append([]entity.Capability(nil), caps...)
	}
	return &PlanRepo{version: 1, tiers: tiers}
}

// Load devuelve una copia de la matriz vigente.
func (r *PlanRepo) Load(_ context.Context) (*repository.PlanMatrix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[entity.PlanTier][]entity.Capability, len(r.tiers))
	for t, caps := range r.tiers {
		out[t] = append([]entity.Capability(nil), caps...)
	}
	return &repository.PlanMatrix{Version: r.version, Tiers: out}, nil
}

// ReplaceTier reemplaza un plan e incrementa la versión.
func (r *PlanRepo) ReplaceTier(_ context.Context, tier entity.PlanTier, caps []entity.Capability) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[tier] = append([]entity.Capability(nil), caps...)
	r.version++
	return r.version, nil
}

package repository

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// PlanMatrix contenido crudo de la matriz plan → capacidades, con su versión.
type PlanMatrix struct {
	Version int64
	Tiers   map[entity.PlanTier][]entity.Capability
}

// PlanRepository puerto de la matriz de planes (editable solo por la ruta de administración).
type PlanRepository interface {
	Load(ctx context.Context) (*PlanMatrix, error)
	// ReplaceTier reemplaza las capacidades de un plan y devuelve la nueva versión.
	ReplaceTier(ctx context.Context, tier entity.PlanTier, caps []entity.Capability) (int64, error)
}

package repository

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
// Los Get* devuelven (nil, nil) cuando el usuario no existe.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByPhone(ctx context.Context, phone string) (*entity.User, error)
	// UpdatePlan aplica un evento de facturación; efectivo en la siguiente resolución.
	UpdatePlan(ctx context.Context, id string, tier entity.PlanTier, subscriptionActive bool) error
	// ListEntitledIDs usuarios activos cuyo plan incluye la capacidad dada (para el scheduler).
	ListEntitledIDs(ctx context.Context, tiers []entity.PlanTier) ([]string, error)
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo usuarios en memoria (modo demo y tests).
type UserRepo struct {
	mu    sync.RWMutex
	byID  map[string]entity.User
	phone map[string]string
}

// NewUserRepository construye el repositorio vacío.
func NewUserRepository() *UserRepo {
	return &UserRepo{byID: map[string]entity.User{}, phone: map[string]string{}}
}

// Create persiste un nuevo usuario; el teléfono es único.
func (r *UserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.phone[u.Phone]; ok {
		return domain.ErrPhoneAlreadyExists
	}
	r.byID[u.ID] = *u
	r.phone[u.Phone] = u.ID
	return nil
}

// GetByID obtiene un usuario por ID; (nil, nil) si no existe.
func (r *UserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetByPhone obtiene un usuario por teléfono; (nil, nil) si no existe.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*entity.User, error) {
	r.mu.RLock()
	id, ok := r.phone[phone]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdatePlan aplica un evento de facturación.
func (r *UserRepo) UpdatePlan(_ context.Context, id string, tier entity.PlanTier, subscriptionActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PlanTier = tier
	u.SubscriptionActive = subscriptionActive
	u.UpdatedAt = time.Now()
	r.byID[id] = u
	return nil
}

// ListEntitledIDs usuarios activos con suscripción activa en alguno de los planes.
func (r *UserRepo) ListEntitledIDs(_ context.Context, tiers []entity.PlanTier) ([]string, error) {
	want := make(map[entity.PlanTier]bool, len(tiers))
	for _, t := range tiers {
		want[t] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, u := range r.byID {
		if u.Entitled() && want[u.PlanTier] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

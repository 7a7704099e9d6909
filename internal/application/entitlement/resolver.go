package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// Resolver resuelve las capacidades de un usuario a partir de su plan actual.
// Es el único punto de la aplicación que conoce la matriz de planes.
// Lee la fila del usuario en cada llamada: un evento de facturación tiene efecto
// en la siguiente resolución. Seguro para uso concurrente.
type Resolver struct {
	users   repository.UserRepository
	plans   repository.PlanRepository
	catalog atomic.Pointer[Catalog]
	log     zerolog.Logger
}

// NewResolver construye el resolver con el catálogo inicial dado.
func NewResolver(users repository.UserRepository, plans repository.PlanRepository, initial *Catalog, log zerolog.Logger) *Resolver {
	r := &Resolver{users: users, plans: plans, log: log}
	r.catalog.Store(initial)
	return r
}

// Catalog catálogo vigente.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog.Load()
}

// Reload relee la matriz del repositorio. Una matriz inválida se descarta y se
// conserva la vigente.
func (r *Resolver) Reload(ctx context.Context) error {
	m, err := r.plans.Load(ctx)
	if err != nil {
		return fmt.Errorf("entitlement: cargar matriz: %w", err)
	}
	if m == nil {
		return nil
	}
	current := r.catalog.Load()
	if current != nil && current.Version() == m.Version {
		return nil
	}
	next, err := NewCatalog(m.Version, m.Tiers)
	if err != nil {
		return fmt.Errorf("entitlement: matriz v%d: %w", m.Version, err)
	}
	r.catalog.Store(next)
	r.log.Info().Int64("version", next.Version()).Msg("matriz de planes actualizada")
	return nil
}

// Watch recarga la matriz cada interval hasta que ctx se cancele.
func (r *Resolver) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil {
				r.log.Warn().Err(err).Msg("recarga de matriz fallida")
			}
		}
	}
}

// ReplaceTier ruta de administración: valida la matriz candidata antes de
// persistirla y la publica de inmediato.
func (r *Resolver) ReplaceTier(ctx context.Context, tier entity.PlanTier, caps []entity.Capability) (*Catalog, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: plan desconocido %q", domain.ErrInvalidInput, tier)
	}
	candidate := r.catalog.Load().WithTier(tier, caps)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	version, err := r.plans.ReplaceTier(ctx, tier, caps)
	if err != nil {
		return nil, fmt.Errorf("entitlement: guardar plan %s: %w", tier, err)
	}
	next, err := NewCatalog(version, candidate.Matrix())
	if err != nil {
		return nil, err
	}
	r.catalog.Store(next)
	return next, nil
}

// Resolve conjunto de capacidades vigente del usuario.
// Usuario inexistente → domain.ErrUserNotFound. Cuenta o suscripción inactiva → conjunto vacío.
func (r *Resolver) Resolve(ctx context.Context, userID string) (entity.CapabilitySet, error) {
	_, set, err := r.ResolveUser(ctx, userID)
	return set, err
}

// ResolveUser igual que Resolve pero devuelve también el usuario leído.
func (r *Resolver) ResolveUser(ctx context.Context, userID string) (*entity.User, entity.CapabilitySet, error) {
	if userID == "" {
		return nil, entity.CapabilitySet{}, domain.ErrUserNotFound
	}
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, entity.CapabilitySet{}, fmt.Errorf("entitlement: leer usuario: %w", err)
	}
	if u == nil {
		return nil, entity.CapabilitySet{}, domain.ErrUserNotFound
	}
	if !u.Entitled() {
		return u, entity.NewCapabilitySet(), nil
	}
	return u, r.catalog.Load().Capabilities(u.PlanTier), nil
}

// HasCapability primitivo que consultan el router, el orquestador de backups y los middlewares.
// Sin efectos secundarios.
func (r *Resolver) HasCapability(ctx context.Context, userID string, capability entity.Capability) (bool, error) {
	set, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(capability), nil
}

// Require devuelve nil si el usuario tiene la capacidad, o un *DeniedError
// (que envuelve domain.ErrEntitlementDenied) con el plan mínimo que la concede.
func (r *Resolver) Require(ctx context.Context, userID string, capability entity.Capability) error {
	ok, err := r.HasCapability(ctx, userID, capability)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return r.Denied(capability)
}

// Denied construye el error de denegación para la capacidad.
func (r *Resolver) Denied(capability entity.Capability) *DeniedError {
	tier, _ := r.catalog.Load().MinimumTier(capability)
	return &DeniedError{Capability: capability, RequiredTier: tier}
}

// MinimumTier plan más bajo que concede la capacidad según el catálogo vigente.
func (r *Resolver) MinimumTier(capability entity.Capability) (entity.PlanTier, bool) {
	return r.catalog.Load().MinimumTier(capability)
}

// TiersGranting planes que conceden la capacidad según el catálogo vigente.
func (r *Resolver) TiersGranting(capability entity.Capability) []entity.PlanTier {
	return r.catalog.Load().TiersGranting(capability)
}

// DeniedError resultado de una denegación por plan: no es un fallo, lleva lo
// necesario para el mensaje de upgrade.
type DeniedError struct {
	Capability   entity.Capability
	RequiredTier entity.PlanTier
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s requiere plan %s", domain.ErrEntitlementDenied, e.Capability, e.RequiredTier)
}

func (e *DeniedError) Unwrap() error { return domain.ErrEntitlementDenied }

// UpgradeMessage texto para el usuario.
func (e *DeniedError) UpgradeMessage() string {
	return UpgradeMessage(e.Capability, e.RequiredTier)
}

// AsDenied extrae el *DeniedError de una cadena de errores.
func AsDenied(err error) (*DeniedError, bool) {
	var d *DeniedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

package entitlement

import (
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// Catalog foto inmutable y versionada de la matriz plan → capacidades.
// Se reemplaza entera; nunca se modifica en sitio.
type Catalog struct {
	version int64
	tiers   map[entity.PlanTier]entity.CapabilitySet
}

// DefaultMatrix matriz con la que arranca un entorno sin datos (ver cmd/seed_plans).
func DefaultMatrix() map[entity.PlanTier][]entity.Capability {
	basic := []entity.Capability{
		entity.CapFinanceEntry,
		entity.CapExportCSV,
		entity.CapExportPDF,
		entity.CapSupportEmail,
		entity.CapBackupAutomatic,
	}
	business := append(append([]entity.Capability{}, basic...),
		entity.CapWhatsAppChannel,
		entity.CapAgentSDR,
		entity.CapAgentMarketing,
		entity.CapWorkspaceGoogle,
		entity.CapSupportPriority,
	)
	premium := append(append([]entity.Capability{}, business...),
		entity.CapAgentScraper,
		entity.CapWebSearch,
		entity.CapBackupManual,
	)
	return map[entity.PlanTier][]entity.Capability{
		entity.PlanBasic:    basic,
		entity.PlanBusiness: business,
		entity.PlanPremium:  premium,
	}
}

// NewCatalog valida la matriz y construye el catálogo.
func NewCatalog(version int64, matrix map[entity.PlanTier][]entity.Capability) (*Catalog, error) {
	tiers := make(map[entity.PlanTier]entity.CapabilitySet, len(entity.OrderedTiers))
	for tier, caps := range matrix {
		if !tier.Valid() {
			return nil, fmt.Errorf("%w: plan desconocido %q", domain.ErrCatalogInvalid, tier)
		}
		tiers[tier] = entity.NewCapabilitySet(caps...)
	}
	c := &Catalog{version: version, tiers: tiers}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate exige que cada plan contenga todas las capacidades del anterior
// (Basic ⊆ Business ⊆ Premium) y que todos los planes estén presentes.
func (c *Catalog) Validate() error {
	for i, tier := range entity.OrderedTiers {
		if _, ok := c.tiers[tier]; !ok {
			return fmt.Errorf("%w: falta el plan %q", domain.ErrCatalogInvalid, tier)
		}
		if i == 0 {
			continue
		}
		lower := entity.OrderedTiers[i-1]
		if !c.tiers[lower].SubsetOf(c.tiers[tier]) {
			return fmt.Errorf("%w: %q no incluye todas las capacidades de %q", domain.ErrCatalogInvalid, tier, lower)
		}
	}
	return nil
}

// Version número de versión de la matriz.
func (c *Catalog) Version() int64 { return c.version }

// Capabilities conjunto concedido por el plan; vacío si el plan no existe.
func (c *Catalog) Capabilities(tier entity.PlanTier) entity.CapabilitySet {
	return c.tiers[tier]
}

// Grants informa si el plan concede la capacidad.
func (c *Catalog) Grants(tier entity.PlanTier, capability entity.Capability) bool {
	return c.tiers[tier].Has(capability)
}

// MinimumTier plan más bajo que concede la capacidad. ok=false si ninguno la concede.
func (c *Catalog) MinimumTier(capability entity.Capability) (entity.PlanTier, bool) {
	for _, tier := range entity.OrderedTiers {
		if c.tiers[tier].Has(capability) {
			return tier, true
		}
	}
	return "", false
}

// Matrix copia de la matriz (para persistir o mostrar).
func (c *Catalog) Matrix() map[entity.PlanTier][]entity.Capability {
	out := make(map[entity.PlanTier][]entity.Capability, len(c.tiers))
	for tier, set := range c.tiers {
		out[tier] = set.Slice()
	}
	return out
}

// WithTier devuelve un catálogo candidato con el plan reemplazado (sin validar).
func (c *Catalog) WithTier(tier entity.PlanTier, caps []entity.Capability) *Catalog {
	tiers := make(map[entity.PlanTier]entity.CapabilitySet, len(c.tiers))
	for t, set := range c.tiers {
		tiers[t] = set
	}
	tiers[tier] = entity.NewCapabilitySet(caps...)
	return &Catalog{version: c.version + 1, tiers: tiers}
}

// TiersGranting planes que conceden la capacidad, de menor a mayor.
func (c *Catalog) TiersGranting(capability entity.Capability) []entity.PlanTier {
	var out []entity.PlanTier
	for _, tier := range entity.OrderedTiers {
		if c.tiers[tier].Has(capability) {
			out = append(out, tier)
		}
	}
	return out
}

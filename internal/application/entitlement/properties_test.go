package entitlement_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
)

var allCaps = []entity.Capability{
	entity.CapFinanceEntry, entity.CapExportCSV, entity.CapExportPDF, entity.CapSupportEmail,
	entity.CapBackupAutomatic, entity.CapWhatsAppChannel, entity.CapAgentSDR, entity.CapAgentMarketing,
	entity.CapWorkspaceGoogle, entity.CapSupportPriority, entity.CapAgentScraper, entity.CapWebSearch,
	entity.CapBackupManual,
}

func pick(idx []int) []entity.Capability {
	out := make([]entity.Capability, 0, len(idx))
	for _, i := range idx {
		out = append(out, allCaps[i])
	}
	return out
}

// Property: una matriz construida por uniones sucesivas siempre es válida y el
// plan mínimo de cada capacidad es el primero que la incluye.
func TestCatalogProperty_UnionesSucesivasSonValidas(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	idx := gen.SliceOf(gen.IntRange(0, len(allCaps)-1))
	properties.Property("Basic ⊆ Business ⊆ Premium por construcción", prop.ForAll(
		func(a, b, c []int) bool {
			basic := pick(a)
			business := append(append([]entity.Capability{}, basic...), pick(b)...)
			premium := append(append([]entity.Capability{}, business...), pick(c)...)
			cat, err := entitlement.NewCatalog(1, map[entity.PlanTier][]entity.Capability{
				entity.PlanBasic: basic, entity.PlanBusiness: business, entity.PlanPremium: premium,
			})
			if err != nil {
				return false
			}
			for _, capability := range basic {
				if tier, _ := cat.MinimumTier(capability); tier != entity.PlanBasic {
					return false
				}
			}
			return true
		},
		idx, idx, idx,
	))

	properties.TestingRun(t)
}

// Property: si un plan superior pierde una capacidad del inferior, la matriz se rechaza.
func TestCatalogProperty_PerderCapacidadInvalida(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("premium sin una capacidad de business es inválido", prop.ForAll(
		func(a []int, drop int) bool {
			business := entity.NewCapabilitySet(append(pick(a), allCaps[drop])...)
			var premium []entity.Capability
			for _, capability := range business.Slice() {
				if capability != allCaps[drop] {
					premium = append(premium, capability)
				}
			}
			_, err := entitlement.NewCatalog(1, map[entity.PlanTier][]entity.Capability{
				entity.PlanBasic: nil, entity.PlanBusiness: business.Slice(), entity.PlanPremium: premium,
			})
			return err != nil
		},
		gen.SliceOf(gen.IntRange(0, len(allCaps)-1)),
		gen.IntRange(0, len(allCaps)-1),
	))

	properties.TestingRun(t)
}

// Property: resolver dos veces sin cambio de plan devuelve el mismo conjunto.
func TestResolverProperty_Idempotente(t *testing.T) {
	users := memory.NewUserRepository()
	cat, _ := entitlement.NewCatalog(1, entitlement.DefaultMatrix())
	r := entitlement.NewResolver(users, memory.NewPlanRepository(entitlement.DefaultMatrix()), cat, zerolog.Nop())
	ctx := context.Background()
	for i, tier := range entity.OrderedTiers {
		_ = users.Create(ctx, &entity.User{
			ID: string(tier), Phone: "551100000000" + string(rune('0'+i)), PlanTier: tier,
			SubscriptionActive: true, IsActive: true,
		})
	}

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("resolve(u) == resolve(u)", prop.ForAll(
		func(i int) bool {
			id := string(entity.OrderedTiers[i])
			first, err1 := r.Resolve(ctx, id)
			second, err2 := r.Resolve(ctx, id)
			return err1 == nil && err2 == nil && first.Equal(second)
		},
		gen.IntRange(0, len(entity.OrderedTiers)-1),
	))

	properties.TestingRun(t)
}

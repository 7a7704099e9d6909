package entity

import "fmt"

// PlanTier niveles de suscripción. El orden importa: basic < business < premium.
type PlanTier string

const (
	PlanBasic    PlanTier = "basic"
	PlanBusiness PlanTier = "business"
	PlanPremium  PlanTier = "premium"
)

// OrderedTiers lista los planes del menor al mayor.
var OrderedTiers = []PlanTier{PlanBasic, PlanBusiness, PlanPremium}

// Rank posición del plan en OrderedTiers; -1 si no es un plan conocido.
func (t PlanTier) Rank() int {
	for i, tier := range OrderedTiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid informa si el plan es uno de los conocidos.
func (t PlanTier) Valid() bool { return t.Rank() >= 0 }

// DisplayName nombre comercial mostrado al usuario.
func (t PlanTier) DisplayName() string {
	switch t {
	case PlanBasic:
		return "Basic"
	case PlanBusiness:
		return "Business"
	case PlanPremium:
		return "Premium"
	default:
		return string(t)
	}
}

// ParsePlanTier valida un string de plan.
func ParsePlanTier(s string) (PlanTier, error) {
	t := PlanTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("plan desconocido: %q", s)
	}
	return t, nil
}

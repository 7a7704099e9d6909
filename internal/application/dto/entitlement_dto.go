package dto

// EntitlementsResponse plan vigente y capacidades resueltas del usuario.
type EntitlementsResponse struct {
	UserID             string   `json:"user_id"`
	PlanTier           string   `json:"plan_tier"`
	PlanName           string   `json:"plan_name"`
	SubscriptionActive bool     `json:"subscription_active"`
	IsActive           bool     `json:"is_active"`
	Capabilities       []string `json:"capabilities"`
	CatalogVersion     int64    `json:"catalog_version"`
}

// ReplaceTierRequest nuevas capacidades de un plan.
type ReplaceTierRequest struct {
	Capabilities []string `json:"capabilities" validate:"required"`
}

// CatalogResponse matriz completa tras un cambio.
type CatalogResponse struct {
	Version int64               `json:"version"`
	Tiers   map[string][]string `json:"tiers"`
}

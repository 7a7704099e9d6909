package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/auth"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// EntitlementHandler plan y capacidades del usuario; administración de la matriz.
type EntitlementHandler struct {
	resolver *entitlement.Resolver
	authUC   *auth.AuthUseCase
	audit    *audit.Service
}

// NewEntitlementHandler construye el handler.
func NewEntitlementHandler(resolver *entitlement.Resolver, authUC *auth.AuthUseCase, auditSvc *audit.Service) *EntitlementHandler {
	return &EntitlementHandler{resolver: resolver, authUC: authUC, audit: auditSvc}
}

// Mine godoc
// @Summary      Capacidades del usuario
// @Tags         entitlements
// @Produce      json
// @Success      200  {object}  dto.EntitlementsResponse
// @Router       /api/me/entitlements [get]
func (h *EntitlementHandler) Mine(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	u, caps, err := h.resolver.ResolveUser(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, "usuario no encontrado")
	}
	return c.JSON(dto.EntitlementsResponse{
		UserID:             u.ID,
		PlanTier:           string(u.PlanTier),
		PlanName:           u.PlanTier.DisplayName(),
		SubscriptionActive: u.SubscriptionActive,
		IsActive:           u.IsActive,
		Capabilities:       caps.Strings(),
		CatalogVersion:     h.resolver.Catalog().Version(),
	})
}

// Catalog matriz vigente.
// GET /api/admin/plans
func (h *EntitlementHandler) Catalog(c *fiber.Ctx) error {
	return c.JSON(catalogResponse(h.resolver.Catalog()))
}

// ReplaceTier godoc
// @Summary      Reemplazar capacidades de un plan
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        tier  path  string                  true  "basic | business | premium"
// @Param        body  body  dto.ReplaceTierRequest  true  "capacidades"
// @Success      200   {object}  dto.CatalogResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/admin/plans/{tier} [put]
func (h *EntitlementHandler) ReplaceTier(c *fiber.Ctx) error {
	tier, err := entity.ParsePlanTier(c.Params("tier"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	var in dto.ReplaceTierRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	caps := make([]entity.Capability, 0, len(in.Capabilities))
	for _, s := range in.Capabilities {
		caps = append(caps, entity.Capability(s))
	}
	next, err := h.resolver.ReplaceTier(c.UserContext(), tier, caps)
	actor := GetUserID(c)
	if err != nil {
		_ = h.audit.Record(c.UserContext(), actor, entity.ActionCatalogUpdated, string(tier), entity.OutcomeError, err.Error(), nil)
		return writeError(c, err, "la matriz debe cumplir basic ⊆ business ⊆ premium")
	}
	_ = h.audit.Record(c.UserContext(), actor, entity.ActionCatalogUpdated, string(tier), entity.OutcomeAllowed, "",
		map[string]string{"version": strconv.FormatInt(next.Version(), 10)})
	return c.JSON(catalogResponse(next))
}

// ChangePlan godoc
// @Summary      Evento de facturación: cambiar plan de un usuario
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "user id"
// @Param        body  body  dto.ChangePlanRequest  true  "plan"
// @Success      200   {object}  dto.UserResponse
// @Router       /api/admin/users/{id}/plan [put]
func (h *EntitlementHandler) ChangePlan(c *fiber.Ctx) error {
	var in dto.ChangePlanRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	u, err := h.authUC.ChangePlan(c.UserContext(), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err, "plan o usuario inválido")
	}
	return c.JSON(u)
}

func catalogResponse(cat *entitlement.Catalog) dto.CatalogResponse {
	out := dto.CatalogResponse{Version: cat.Version(), Tiers: map[string][]string{}}
	for tier, caps := range cat.Matrix() {
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, string(c))
		}
		out.Tiers[string(tier)] = names
	}
	return out
}

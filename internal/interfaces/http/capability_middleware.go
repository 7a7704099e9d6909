package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// capabilityChecker contrato mínimo que necesita el middleware.
// Lo implementa *entitlement.Resolver.
type capabilityChecker interface {
	HasCapability(ctx context.Context, userID string, capability entity.Capability) (bool, error)
	MinimumTier(capability entity.Capability) (entity.PlanTier, bool)
}

// RequireCapability verifica que el plan del usuario del token conceda la capacidad.
// Debe usarse DESPUÉS de AuthMiddleware.
//
// Comportamiento:
//   - 403 ENTITLEMENT_DENIED → el plan no la incluye; el cuerpo nombra el plan mínimo.
//   - 503 ENTITLEMENT_CHECK_FAILED → fallo de infraestructura al resolver el plan.
//   - 401 si no hay user_id en el contexto.
func RequireCapability(capability entity.Capability, checker capabilityChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "user_id no encontrado en el token",
			})
		}

		ok, err := checker.HasCapability(c.UserContext(), userID, capability)
		if err != nil {
			if status, code, handled := domainStatus(err); handled {
				return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: "usuário não encontrado"})
			}
			log.Error().Err(err).Str("user_id", userID).Str("capability", string(capability)).Msg("verificación de capacidad fallida")
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "ENTITLEMENT_CHECK_FAILED",
				Message: "no se pudo verificar el plan, intente más tarde",
				Action:  "retry",
			})
		}

		if !ok {
			tier, _ := checker.MinimumTier(capability)
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:         "ENTITLEMENT_DENIED",
				Message:      entitlement.UpgradeMessage(capability, tier),
				Action:       "upgrade",
				RequiredTier: string(tier),
			})
		}

		return c.Next()
	}
}

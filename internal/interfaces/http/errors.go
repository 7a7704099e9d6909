package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// domainStatus status y código HTTP para los errores de dominio conocidos.
func domainStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound, "USER_NOT_FOUND", true
	case errors.Is(err, domain.ErrBackupNotFound), errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", true
	case errors.Is(err, domain.ErrBackupNotRestorable):
		return fiber.StatusConflict, "BACKUP_NOT_RESTORABLE", true
	case errors.Is(err, domain.ErrRestoreInProgress):
		return fiber.StatusConflict, "RESTORE_IN_PROGRESS", true
	case errors.Is(err, domain.ErrBackupIntegrity):
		return fiber.StatusUnprocessableEntity, "BACKUP_INTEGRITY", true
	case errors.Is(err, domain.ErrCatalogInvalid):
		return fiber.StatusUnprocessableEntity, "CATALOG_INVALID", true
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "VALIDATION", true
	case errors.Is(err, domain.ErrPhoneAlreadyExists):
		return fiber.StatusConflict, "PHONE_EXISTS", true
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED", true
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN", true
	default:
		return 0, "", false
	}
}

// writeError traduce err al cuerpo de error. Las negaciones por plan llevan el
// mensaje de upgrade; lo desconocido es 500 sin detalle.
func writeError(c *fiber.Ctx, err error, message string) error {
	if d, ok := entitlement.AsDenied(err); ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Code:         "ENTITLEMENT_DENIED",
			Message:      d.UpgradeMessage(),
			Action:       "upgrade",
			RequiredTier: string(d.RequiredTier),
		})
	}
	if status, code, ok := domainStatus(err); ok {
		out := dto.ErrorResponse{Code: code, Message: message}
		if code == "RESTORE_IN_PROGRESS" {
			out.Action = "retry"
		}
		return c.Status(status).JSON(out)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "erro interno, tente novamente"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

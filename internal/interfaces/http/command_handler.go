package http

import (
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/meu-agente-api/internal/application/compliance"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/application/router"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// inboundDedupTTL la Cloud API reentrega el mismo webhook durante horas.
const inboundDedupTTL = 24 * time.Hour

// CommandHandler entrada de comandos (web) y webhook de WhatsApp.
type CommandHandler struct {
	router *router.CommandRouter
	guard  *compliance.Guard
	users  repository.UserRepository
	idem   ports.IdempotencyStore
}

// NewCommandHandler construye el handler.
func NewCommandHandler(r *router.CommandRouter, guard *compliance.Guard, users repository.UserRepository, idem ports.IdempotencyStore) *CommandHandler {
	return &CommandHandler{router: r, guard: guard, users: users, idem: idem}
}

// Execute godoc
// @Summary      Ejecutar comando
// @Description  Pasa el comando por el router: plan, payload y sub-agente.
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CommandRequest  true  "intent y payload"
// @Success      200   {object}  dto.CommandResponse
// @Failure      403   {object}  dto.CommandResponse
// @Router       /api/commands [post]
func (h *CommandHandler) Execute(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CommandRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Intent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "intent es requerido"})
	}
	res := h.router.Route(c.UserContext(), entity.Command{
		ID:      in.ID,
		UserID:  userID,
		Channel: entity.ChannelWeb,
		Intent:  in.Intent,
		Payload: in.Payload,
	})
	return c.Status(commandStatus(res)).JSON(commandResponse(res))
}

// WhatsAppWebhook godoc
// @Summary      Mensaje entrante de WhatsApp
// @Description  Abre o extiende la ventana de 24h del contacto y, si trae intent, ejecuta el comando del usuario dueño del número.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        body  body  dto.WhatsAppInbound  true  "mensaje normalizado"
// @Success      200   {object}  map[string]interface{}
// @Router       /api/webhooks/whatsapp [post]
func (h *CommandHandler) WhatsAppWebhook(c *fiber.Ctx) error {
	var in dto.WhatsAppInbound
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from es requerido"})
	}
	ctx := c.UserContext()

	if in.MessageID != "" {
		seen, err := h.idem.SeenOnce(ctx, "wa-inbound:"+in.MessageID, inboundDedupTTL)
		if err != nil {
			return writeError(c, err, "")
		}
		if seen {
			return c.JSON(fiber.Map{"duplicate": true})
		}
	}

	// un timestamp futuro no puede estirar la ventana más allá de ahora + 24h
	at := time.Now().UTC()
	if in.Timestamp > 0 {
		if sent := time.Unix(in.Timestamp, 0).UTC(); sent.Before(at) {
			at = sent
		}
	}
	session, err := h.guard.RecordInbound(ctx, in.From, at)
	if err != nil {
		if in.MessageID != "" {
			_ = h.idem.Forget(ctx, "wa-inbound:"+in.MessageID)
		}
		return writeError(c, err, "teléfono inválido")
	}
	out := fiber.Map{"window_expires_at": session.ExpiresAt()}
	if in.Intent == "" {
		return c.JSON(out)
	}

	u, err := h.users.GetByPhone(ctx, in.From)
	if err != nil {
		return writeError(c, err, "")
	}
	if u == nil {
		log.Info().Str("message_id", in.MessageID).Msg("comando de WhatsApp de número no registrado")
		out["command"] = dto.CommandResponse{State: string(entity.CommandDenied), Outcome: string(entity.OutcomeDenied), Code: router.CodeUserNotFound}
		return c.JSON(out)
	}
	res := h.router.Route(ctx, entity.Command{
		ID:      in.MessageID,
		UserID:  u.ID,
		Channel: entity.ChannelWhatsApp,
		Intent:  in.Intent,
		Payload: in.Payload,
	})
	out["command"] = commandResponse(res)
	return c.JSON(out)
}

// WebhookSecret exige el secreto compartido con el gateway de WhatsApp.
// Secreto vacío desactiva la verificación (desarrollo).
func WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		got := c.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "secreto de webhook inválido"})
		}
		return c.Next()
	}
}

func commandResponse(res *router.Result) dto.CommandResponse {
	return dto.CommandResponse{
		CommandID:    res.CommandID,
		State:        string(res.State),
		Outcome:      string(res.Outcome),
		Code:         res.Code,
		Message:      res.UserMessage,
		Action:       string(res.Action),
		RequiredTier: string(res.RequiredTier),
		Data:         res.Data,
	}
}

// commandStatus el cuerpo siempre es CommandResponse; el status resume el resultado.
func commandStatus(res *router.Result) int {
	switch res.State {
	case entity.CommandCompleted:
		return fiber.StatusOK
	case entity.CommandDenied:
		return fiber.StatusForbidden
	}
	switch res.Code {
	case router.CodeUnknownIntent, router.CodeUserNotFound:
		return fiber.StatusNotFound
	case router.CodeInvalidPayload:
		return fiber.StatusUnprocessableEntity
	case router.CodeRestoreInProgress:
		return fiber.StatusConflict
	case router.CodeAuthExpired, router.CodeDomainNotAllowed:
		return fiber.StatusFailedDependency
	case router.CodeSubAgentUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

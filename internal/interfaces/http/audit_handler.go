package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/privacy"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// AuditHandler historial propio y solicitudes LGPD.
type AuditHandler struct {
	audit   *audit.Service
	privacy *privacy.EraseService
}

// NewAuditHandler construye el handler.
func NewAuditHandler(auditSvc *audit.Service, eraseSvc *privacy.EraseService) *AuditHandler {
	return &AuditHandler{audit: auditSvc, privacy: eraseSvc}
}

// List godoc
// @Summary      Auditoría propia (más recientes primero)
// @Tags         audit
// @Produce      json
// @Param        limit   query  int  false  "default 20"
// @Param        offset  query  int  false  "default 0"
// @Success      200  {object}  dto.AuditListResponse
// @Router       /api/audit [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var page dto.PageRequest
	_ = c.QueryParser(&page)
	page.DefaultPage()
	if page.Limit > 100 {
		page.Limit = 100
	}
	entries, err := h.audit.ListByActor(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err, "")
	}
	out := dto.AuditListResponse{Items: make([]dto.AuditEntryResponse, 0, len(entries)), Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}
	for _, e := range entries {
		out.Items = append(out.Items, auditResponse(e))
	}
	return c.JSON(out)
}

type eraseRequest struct {
	Reason string `json:"reason"`
}

// Erase godoc
// @Summary      Solicitud de borrado (LGPD)
// @Description  Registra un tombstone data.erased; el historial de auditoría se conserva.
// @Tags         privacy
// @Accept       json
// @Produce      json
// @Success      202  {object}  dto.AuditEntryResponse
// @Router       /api/privacy/erase [post]
func (h *AuditHandler) Erase(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in eraseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	e, err := h.privacy.Erase(c.UserContext(), userID, in.Reason)
	if err != nil {
		return writeError(c, err, "usuario no encontrado")
	}
	return c.Status(fiber.StatusAccepted).JSON(auditResponse(e))
}

func auditResponse(e *entity.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:        e.ID,
		Action:    e.Action,
		SubjectID: e.SubjectID,
		Outcome:   string(e.Outcome),
		Reason:    e.Reason,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
}

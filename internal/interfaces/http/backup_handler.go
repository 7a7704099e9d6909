package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/backup"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// BackupHandler backups del usuario: listado, disparo manual, descarga y restauración.
type BackupHandler struct {
	orch *backup.Orchestrator
}

// NewBackupHandler construye el handler.
func NewBackupHandler(orch *backup.Orchestrator) *BackupHandler {
	return &BackupHandler{orch: orch}
}

// List godoc
// @Summary      Listar backups
// @Tags         backups
// @Produce      json
// @Param        limit  query  int  false  "máximo (default 20)"
// @Success      200  {array}  dto.BackupResponse
// @Router       /api/backups [get]
func (h *BackupHandler) List(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var page dto.PageRequest
	_ = c.QueryParser(&page)
	page.DefaultPage()
	recs, err := h.orch.List(c.UserContext(), userID, page.Limit)
	if err != nil {
		return writeError(c, err, "")
	}
	out := make([]dto.BackupResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, backupResponse(r))
	}
	return c.JSON(out)
}

// Trigger godoc
// @Summary      Backup manual (plan Premium)
// @Tags         backups
// @Produce      json
// @Success      201  {object}  dto.BackupResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/backups [post]
func (h *BackupHandler) Trigger(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	rec, err := h.orch.TriggerManual(c.UserContext(), userID)
	if err != nil {
		if step := backup.FailedStep(err); step != "" {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Code:    "BACKUP_FAILED",
				Message: "o backup falhou na etapa " + step,
				Action:  "retry",
			})
		}
		return writeError(c, err, "não foi possível iniciar o backup")
	}
	return c.Status(fiber.StatusCreated).JSON(backupResponse(rec))
}

// Restore godoc
// @Summary      Restaurar un backup
// @Tags         backups
// @Produce      json
// @Param        id  path  string  true  "backup id"
// @Success      200  {object}  dto.RestoreResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/backups/{id}/restore [post]
func (h *BackupHandler) Restore(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	res, err := h.orch.Restore(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err, "backup não encontrado ou não restaurável")
	}
	return c.JSON(dto.RestoreResponse{BackupID: res.BackupID, RecordCount: res.RecordCount, ContentChecksum: res.ContentChecksum})
}

// Download godoc
// @Summary      Descargar un backup
// @Description  Snapshot JSON canónico del backup, descifrado y verificado.
// @Tags         backups
// @Produce      json
// @Param        id  path  string  true  "backup id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/backups/{id}/download [get]
func (h *BackupHandler) Download(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	content, rec, err := h.orch.Download(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err, "backup não encontrado ou indisponível para download")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="meu-agente-backup-%s.json"`, rec.CreatedAt.Format("2006-01-02")))
	c.Set("X-Content-Checksum", rec.ContentChecksum)
	return c.Send(content)
}

func backupResponse(r *entity.BackupRecord) dto.BackupResponse {
	return dto.BackupResponse{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Status:      string(r.Status),
		SizeBytes:   r.SizeBytes,
		Checksum:    r.Checksum,
		RecordCount: r.RecordCount,
		FailedStep:  r.FailedStep,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

package repository

import (
	"context"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// SessionStore ventanas de mensajería por contacto.
// Touch es la única vía de mutación y debe ser atómica por contacto; nunca
// retrocede WindowOpenedAt si llega un evento más viejo.
type SessionStore interface {
	Touch(ctx context.Context, contactPhone string, at time.Time) (entity.MessagingSession, error)
	Get(ctx context.Context, contactPhone string) (*entity.MessagingSession, error)
}

// TemplateRepository catálogo de plantillas de WhatsApp.
type TemplateRepository interface {
	Get(ctx context.Context, id string) (*entity.Template, error)
	Upsert(ctx context.Context, t *entity.Template) error
}

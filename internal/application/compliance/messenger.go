package compliance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// Messenger envío saliente de WhatsApp. Todo envío pasa primero por el Guard;
// una negación devuelve el error de dominio sin llamar a la API.
type Messenger struct {
	guard     *Guard
	templates repository.TemplateRepository
	sender    ports.WhatsAppSender
	log       zerolog.Logger
}

// NewMessenger construye el messenger.
func NewMessenger(guard *Guard, templates repository.TemplateRepository, sender ports.WhatsAppSender, log zerolog.Logger) *Messenger {
	return &Messenger{guard: guard, templates: templates, sender: sender, log: log}
}

// Send verifica cumplimiento y envía. Si se manda una plantilla con cuerpo,
// el cuerpo debe coincidir con el aprobado (BodyHash).
func (m *Messenger) Send(ctx context.Context, msg ports.OutboundMessage) (string, error) {
	d, err := m.guard.CanSendProactive(ctx, msg.ContactPhone, msg.TemplateID)
	if err != nil {
		return "", err
	}
	if !d.Allowed {
		m.log.Info().Str("contact", maskPhone(msg.ContactPhone)).Str("reason", d.Reason).Msg("envío bloqueado por cumplimiento")
		return "", d.Err
	}
	if msg.TemplateID != "" && msg.Body != "" && d.Reason == ReasonApprovedTemplate {
		tpl, err := m.templates.Get(ctx, msg.TemplateID)
		if err != nil {
			return "", fmt.Errorf("compliance: leer plantilla: %w", err)
		}
		if tpl == nil || !tpl.Approved {
			return "", domain.ErrTemplateNotApproved
		}
		if tpl.BodyHash != "" && tpl.BodyHash != BodyHash(msg.Body) {
			return "", fmt.Errorf("%w: el cuerpo no coincide con la plantilla aprobada", domain.ErrTemplateNotApproved)
		}
	}
	id, err := m.sender.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	m.log.Debug().Str("contact", maskPhone(msg.ContactPhone)).Str("reason", d.Reason).Str("message_id", id).Msg("mensaje enviado")
	return id, nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}

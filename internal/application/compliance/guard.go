package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// Motivos de una decisión.
const (
	ReasonWindowOpen          = "window_open"
	ReasonApprovedTemplate    = "approved_template"
	ReasonWindowClosed        = "window_closed"
	ReasonTemplateNotApproved = "template_not_approved"
)

// Decision resultado de CanSendProactive. Err es nil cuando Allowed.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

// Guard ventanas de 24h por contacto y lista blanca de plantillas aprobadas.
// Independiente del plan del usuario.
type Guard struct {
	sessions  repository.SessionStore
	templates repository.TemplateRepository
	now       func() time.Time
}

// NewGuard construye el guardián.
func NewGuard(sessions repository.SessionStore, templates repository.TemplateRepository) *Guard {
	return &Guard{sessions: sessions, templates: templates, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// RecordInbound única vía de mutación de la sesión: abre o extiende la ventana del contacto.
func (g *Guard) RecordInbound(ctx context.Context, contactPhone string, at time.Time) (entity.MessagingSession, error) {
	if contactPhone == "" {
		return entity.MessagingSession{}, fmt.Errorf("compliance: %w: teléfono vacío", domain.ErrInvalidInput)
	}
	if at.IsZero() {
		at = g.now()
	}
	return g.sessions.Touch(ctx, contactPhone, at)
}

// CanSendProactive decide si se puede enviar al contacto.
// Ventana abierta (now <= expiresAt): cualquier mensaje. Ventana cerrada o
// inexistente: solo plantillas aprobadas; el resto se niega con
// ErrComplianceWindowClosed (y además ErrTemplateNotApproved si se pidió una
// plantilla no aprobada o desconocida).
func (g *Guard) CanSendProactive(ctx context.Context, contactPhone, templateID string) (Decision, error) {
	session, err := g.sessions.Get(ctx, contactPhone)
	if err != nil {
		return Decision{}, fmt.Errorf("compliance: leer sesión: %w", err)
	}
	if session != nil && session.OpenAt(g.now()) {
		return Decision{Allowed: true, Reason: ReasonWindowOpen}, nil
	}
	if templateID == "" {
		return Decision{Reason: ReasonWindowClosed, Err: domain.ErrComplianceWindowClosed}, nil
	}
	tpl, err := g.templates.Get(ctx, templateID)
	if err != nil {
		return Decision{}, fmt.Errorf("compliance: leer plantilla: %w", err)
	}
	if tpl == nil || !tpl.Approved {
		return Decision{
			Reason: ReasonTemplateNotApproved,
			Err:    fmt.Errorf("%w: %w", domain.ErrComplianceWindowClosed, domain.ErrTemplateNotApproved),
		}, nil
	}
	return Decision{Allowed: true, Reason: ReasonApprovedTemplate}, nil
}

// BodyHash sha256 del cuerpo normalizado (NFC, espacios recortados).
// Dos textos visualmente iguales con distinta composición Unicode dan el mismo hash.
func BodyHash(body string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(strings.TrimSpace(body))))
	return hex.EncodeToString(sum[:])
}

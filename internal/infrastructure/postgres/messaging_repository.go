package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var (
	_ repository.SessionStore       = (*SessionRepo)(nil)
	_ repository.TemplateRepository = (*TemplateRepo)(nil)
)

// SessionRepo ventanas de mensajería. El upsert con GREATEST es atómico por fila
// y nunca retrocede la ventana.
type SessionRepo struct {
	q Querier
}

// NewSessionRepository construye el adaptador.
func NewSessionRepository(q Querier) *SessionRepo {
	return &SessionRepo{q: q}
}

// Touch abre o extiende la ventana del contacto.
func (r *SessionRepo) Touch(ctx context.Context, phone string, at time.Time) (entity.MessagingSession, error) {
	var opened time.Time
	err := r.q.QueryRow(ctx, `
		INSERT INTO messaging_sessions (contact_phone, window_opened_at) VALUES ($1, $2)
		ON CONFLICT (contact_phone) DO UPDATE
			SET window_opened_at = GREATEST(messaging_sessions.window_opened_at, EXCLUDED.window_opened_at)
		RETURNING window_opened_at`, phone, at).Scan(&opened)
	if err != nil {
		return entity.MessagingSession{}, fmt.Errorf("touch session: %w", err)
	}
	return entity.MessagingSession{ContactPhone: phone, WindowOpenedAt: opened}, nil
}

// Get (nil, nil) si el contacto nunca escribió.
func (r *SessionRepo) Get(ctx context.Context, phone string) (*entity.MessagingSession, error) {
	s := entity.MessagingSession{ContactPhone: phone}
	err := r.q.QueryRow(ctx, `SELECT window_opened_at FROM messaging_sessions WHERE contact_phone = $1`, phone).
		Scan(&s.WindowOpenedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// TemplateRepo plantillas de WhatsApp.
type TemplateRepo struct {
	q Querier
}

// NewTemplateRepository construye el adaptador.
func NewTemplateRepository(q Querier) *TemplateRepo {
	return &TemplateRepo{q: q}
}

// Get (nil, nil) si no existe.
func (r *TemplateRepo) Get(ctx context.Context, id string) (*entity.Template, error) {
	var t entity.Template
	err := r.q.QueryRow(ctx, `SELECT id, name, approved, body_hash FROM whatsapp_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Approved, &t.BodyHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

// Upsert crea o actualiza la plantilla (sincronización con el WhatsApp Manager).
func (r *TemplateRepo) Upsert(ctx context.Context, t *entity.Template) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO whatsapp_templates (id, name, approved, body_hash) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, approved = EXCLUDED.approved, body_hash = EXCLUDED.body_hash`,
		t.ID, t.Name, t.Approved, t.BodyHash)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

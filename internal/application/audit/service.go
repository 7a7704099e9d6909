package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// Service log de auditoría append-only. El repositorio primario es la fuente de
// verdad; los publishers (NATS, Kafka) reciben una copia best-effort.
type Service struct {
	repo       repository.AuditRepository
	publishers []ports.AuditPublisher
	log        zerolog.Logger
	now        func() time.Time
}

// NewService construye el servicio.
func NewService(repo repository.AuditRepository, log zerolog.Logger, publishers ...ports.AuditPublisher) *Service {
	return &Service{repo: repo, publishers: publishers, log: log, now: time.Now}
}

// Append completa ID y timestamp, persiste y luego replica.
// Un error del repositorio primario se devuelve; uno de los publishers solo se registra.
func (s *Service) Append(ctx context.Context, e *entity.AuditEntry) error {
	if e.ActorUserID == "" || e.Action == "" || e.Outcome == "" {
		return fmt.Errorf("audit: %w: actor, action y outcome son obligatorios", domain.ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	s.fanOut(ctx, e)
	return nil
}

// Record atajo para las entradas más comunes.
func (s *Service) Record(ctx context.Context, actor, action, subject string, outcome entity.AuditOutcome, reason string, meta map[string]string) error {
	return s.Append(ctx, &entity.AuditEntry{
		ActorUserID: actor,
		Action:      action,
		SubjectID:   subject,
		Outcome:     outcome,
		Reason:      reason,
		Metadata:    meta,
	})
}

// ListByActor entradas del usuario, más recientes primero.
func (s *Service) ListByActor(ctx context.Context, userID string, limit, offset int) ([]*entity.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByActor(ctx, userID, limit, offset)
}

func (s *Service) fanOut(ctx context.Context, e *entity.AuditEntry) {
	if len(s.publishers) == 0 {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		s.log.Warn().Err(err).Str("audit_id", e.ID).Msg("serializar entrada de auditoría")
		return
	}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, e.ActorUserID, payload); err != nil {
			s.log.Warn().Err(err).Str("publisher", p.Name()).Str("audit_id", e.ID).Msg("fan-out de auditoría fallido")
		}
	}
}

package privacy

import (
	"context"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// EraseService solicitudes de borrado LGPD. El historial de auditoría nunca se
// borra: la solicitud deja una entrada "data.erased" que lo marca.
type EraseService struct {
	users repository.UserRepository
	audit *audit.Service
}

// NewEraseService construye el servicio.
func NewEraseService(users repository.UserRepository, auditSvc *audit.Service) *EraseService {
	return &EraseService{users: users, audit: auditSvc}
}

// Erase registra el tombstone de borrado del usuario y devuelve la entrada creada.
func (s *EraseService) Erase(ctx context.Context, userID, reason string) (*entity.AuditEntry, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("privacy: leer usuario: %w", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	if reason == "" {
		reason = "solicitud del titular (LGPD art. 18)"
	}
	e := &entity.AuditEntry{
		ActorUserID: userID,
		Action:      entity.ActionDataErased,
		SubjectID:   userID,
		Outcome:     entity.OutcomeAllowed,
		Reason:      reason,
	}
	if err := s.audit.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

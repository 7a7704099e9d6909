package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo tabla append-only (un trigger rechaza UPDATE y DELETE).
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador.
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserta la entrada.
func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO audit_entries (id, actor_user_id, action, subject_id, outcome, reason, metadata, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ActorUserID, e.Action, e.SubjectID, string(e.Outcome), e.Reason, meta, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByActor más recientes primero.
func (r *AuditRepo) ListByActor(ctx context.Context, actorUserID string, limit, offset int) ([]*entity.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, actor_user_id, action, subject_id, outcome, reason, metadata, ts
		FROM audit_entries WHERE actor_user_id = $1
		ORDER BY ts DESC, id DESC LIMIT $2 OFFSET $3`, actorUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	var out []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		var outcome string
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.SubjectID, &outcome, &e.Reason, &meta, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Outcome = entity.AuditOutcome(outcome)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

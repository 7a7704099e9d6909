package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.PlanRepository = (*PlanRepo)(nil)

// PlanRepo matriz plan → capacidades con versión monotónica.
type PlanRepo struct {
	q  Querier
	tx *TxRunner
}

// NewPlanRepository construye el adaptador.
func NewPlanRepository(q Querier, tx *TxRunner) *PlanRepo {
	return &PlanRepo{q: q, tx: tx}
}

// Load devuelve la matriz vigente; (nil, nil) si nunca se sembró.
func (r *PlanRepo) Load(ctx context.Context) (*repository.PlanMatrix, error) {
	var version int64
	err := r.q.QueryRow(ctx, `SELECT version FROM plan_matrix WHERE id = 1`).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load plan version: %w", err)
	}
	rows, err := r.q.Query(ctx, `SELECT tier, capability FROM plan_capabilities ORDER BY tier, capability`)
	if err != nil {
		return nil, fmt.Errorf("load plan capabilities: %w", err)
	}
	defer rows.Close()
	m := &repository.PlanMatrix{Version: version, Tiers: map[entity.PlanTier][]entity.Capability{}}
	for rows.Next() {
		var tier, capability string
		if err := rows.Scan(&tier, &capability); err != nil {
			return nil, fmt.Errorf("scan plan capability: %w", err)
		}
		t := entity.PlanTier(tier)
		m.Tiers[t] = append(m.Tiers[t], entity.Capability(capability))
	}
	return m, rows.Err()
}

// ReplaceTier reemplaza las capacidades del plan y sube la versión en la misma transacción.
func (r *PlanRepo) ReplaceTier(ctx context.Context, tier entity.PlanTier, caps []entity.Capability) (int64, error) {
	var version int64
	err := r.tx.Run(ctx, func(q Querier) error {
		if err := replaceTier(ctx, q, tier, caps); err != nil {
			return err
		}
		return q.QueryRow(ctx, `
			INSERT INTO plan_matrix (id, version) VALUES (1, 1)
			ON CONFLICT (id) DO UPDATE SET version = plan_matrix.version + 1
			RETURNING version`).Scan(&version)
	})
	if err != nil {
		return 0, fmt.Errorf("replace tier %s: %w", tier, err)
	}
	return version, nil
}

// Seed escribe la matriz completa si la tabla está vacía (cmd/seed_plans y arranque en limpio).
func (r *PlanRepo) Seed(ctx context.Context, matrix map[entity.PlanTier][]entity.Capability) (bool, error) {
	seeded := false
	err := r.tx.Run(ctx, func(q Querier) error {
		tag, err := q.Exec(ctx, `INSERT INTO plan_matrix (id, version) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for tier, caps := range matrix {
			if err := replaceTier(ctx, q, tier, caps); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed plans: %w", err)
	}
	return seeded, nil
}

func replaceTier(ctx context.Context, q Querier, tier entity.PlanTier, caps []entity.Capability) error {
	if _, err := q.Exec(ctx, `DELETE FROM plan_capabilities WHERE tier = $1`, string(tier)); err != nil {
		return err
	}
	for _, c := range caps {
		if _, err := q.Exec(ctx,
			`INSERT INTO plan_capabilities (tier, capability) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			string(tier), string(c)); err != nil {
			return err
		}
	}
	return nil
}

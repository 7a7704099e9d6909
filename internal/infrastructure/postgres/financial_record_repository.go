package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.FinancialRecordRepository = (*FinancialRecordRepo)(nil)

// FinancialRecordRepo registros por generación. record_heads indica la generación
// vigente de cada usuario; ReplaceAll escribe una generación nueva completa y
// mueve el puntero en la misma transacción.
type FinancialRecordRepo struct {
	q  Querier
	tx *TxRunner
}

// NewFinancialRecordRepository construye el adaptador.
func NewFinancialRecordRepository(q Querier, tx *TxRunner) *FinancialRecordRepo {
	return &FinancialRecordRepo{q: q, tx: tx}
}

// Create inserta en la generación vigente (0 si el usuario no tiene head).
func (r *FinancialRecordRepo) Create(ctx context.Context, rec *entity.FinancialRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO financial_records (user_id, generation, id, type, category, amount, description, date, created_at)
		VALUES ($1, COALESCE((SELECT generation FROM record_heads WHERE user_id = $1), 0), $2, $3, $4, $5, $6, $7, $8)`,
		rec.UserID, rec.ID, rec.Type, rec.Category, rec.Amount, rec.Description, rec.Date, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert financial record %s: ya existe", rec.ID)
		}
		return fmt.Errorf("insert financial record: %w", err)
	}
	return nil
}

// ListByUser registros de la generación vigente ordenados por fecha e ID.
func (r *FinancialRecordRepo) ListByUser(ctx context.Context, userID string) ([]*entity.FinancialRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT f.id, f.user_id, f.type, f.category, f.amount, f.description, f.date, f.created_at
		FROM financial_records f
		WHERE f.user_id = $1
		  AND f.generation = COALESCE((SELECT generation FROM record_heads WHERE user_id = $1), 0)
		ORDER BY f.date, f.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list financial records: %w", err)
	}
	defer rows.Close()
	var out []*entity.FinancialRecord
	for rows.Next() {
		var f entity.FinancialRecord
		if err := rows.Scan(&f.ID, &f.UserID, &f.Type, &f.Category, &f.Amount, &f.Description, &f.Date, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan financial record: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ReplaceAll escribe la generación nueva con COPY, mueve el head y borra la
// anterior. Si algo falla, el rollback deja la generación anterior intacta.
func (r *FinancialRecordRepo) ReplaceAll(ctx context.Context, userID string, records []*entity.FinancialRecord) error {
	return r.tx.Run(ctx, func(q Querier) error {
		var current int64
		err := q.QueryRow(ctx, `SELECT generation FROM record_heads WHERE user_id = $1 FOR UPDATE`, userID).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock record head: %w", err)
		}
		next := current + 1

		rows := make([][]any, len(records))
		for i, rec := range records {
			rows[i] = []any{userID, next, rec.ID, rec.Type, rec.Category, rec.Amount, rec.Description, rec.Date, rec.CreatedAt}
		}
		if _, err := q.CopyFrom(ctx,
			pgx.Identifier{"financial_records"},
			[]string{"user_id", "generation", "id", "type", "category", "amount", "description", "date", "created_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("stage generation %d: %w", next, err)
		}

		if _, err := q.Exec(ctx, `
			INSERT INTO record_heads (user_id, generation) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET generation = EXCLUDED.generation`, userID, next); err != nil {
			return fmt.Errorf("swap record head: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM financial_records WHERE user_id = $1 AND generation < $2`, userID, next); err != nil {
			return fmt.Errorf("drop old generations: %w", err)
		}
		return nil
	})
}

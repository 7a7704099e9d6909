package repository

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// FinancialRecordRepository datos financieros del usuario (lo que se respalda).
type FinancialRecordRepository interface {
	Create(ctx context.Context, rec *entity.FinancialRecord) error
	ListByUser(ctx context.Context, userID string) ([]*entity.FinancialRecord, error)
	// ReplaceAll sustituye todos los registros del usuario de forma atómica:
	// o queda el conjunto nuevo completo o el anterior intacto.
	ReplaceAll(ctx context.Context, userID string, records []*entity.FinancialRecord) error
}

package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

const uniqueViolation = "23505"

// isUniqueViolation teléfono repetido, backup_id o checksum ya registrado.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// tierStrings planes como text[] para "= ANY($1)".
func tierStrings(tiers []entity.PlanTier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

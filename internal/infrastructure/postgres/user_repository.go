package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, phone, name, email, password_hash, plan_tier, subscription_active, is_active, role, created_at, updated_at`

// UserRepo implementación del puerto UserRepository sobre PostgreSQL.
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador de persistencia para usuarios.
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// Create persiste un nuevo usuario.
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		user.ID, user.Phone, user.Name, user.Email, user.PasswordHash, string(user.PlanTier),
		user.SubscriptionActive, user.IsActive, user.Role, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPhoneAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID obtiene un usuario por ID; (nil, nil) si no existe.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByPhone obtiene un usuario por teléfono; (nil, nil) si no existe.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg string) (*entity.User, error) {
	var u entity.User
	var tier string
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Phone, &u.Name, &u.Email, &u.PasswordHash, &tier,
		&u.SubscriptionActive, &u.IsActive, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.PlanTier = entity.PlanTier(tier)
	return &u, nil
}

// UpdatePlan aplica un evento de facturación.
func (r *UserRepo) UpdatePlan(ctx context.Context, id string, tier entity.PlanTier, subscriptionActive bool) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET plan_tier = $2, subscription_active = $3, updated_at = NOW() WHERE id = $1`,
		id, string(tier), subscriptionActive)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListEntitledIDs usuarios activos con suscripción activa en alguno de los planes.
func (r *UserRepo) ListEntitledIDs(ctx context.Context, tiers []entity.PlanTier) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id FROM users
		WHERE is_active AND subscription_active AND plan_tier = ANY($1)
		ORDER BY id`, tierStrings(tiers))
	if err != nil {
		return nil, fmt.Errorf("list entitled users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list entitled users: %w", err)
	}
	return ids, nil
}

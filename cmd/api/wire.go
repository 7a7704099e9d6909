package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/postgres"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/redisstore"
	"github.com/jhoicas/meu-agente-api/pkg/config"
	"github.com/jhoicas/meu-agente-api/pkg/logger"
)

// stores adaptadores de persistencia elegidos según DATA_DRIVER y REDIS_URL.
type stores struct {
	users     repository.UserRepository
	plans     repository.PlanRepository
	records   repository.FinancialRecordRepository
	backups   repository.BackupRepository
	audit     repository.AuditRepository
	sessions  repository.SessionStore
	templates repository.TemplateRepository
	locks     ports.UserLocks
	idem      ports.IdempotencyStore

	pool  *pgxpool.Pool
	redis *redis.Client
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	s := &stores{}
	switch cfg.App.DataDriver {
	case "memory":
		log.Warn().Msg("DATA_DRIVER=memory: los datos se pierden al reiniciar")
		s.users = memory.NewUserRepository()
		s.plans = memory.NewPlanRepository(entitlement.DefaultMatrix())
		s.records = memory.NewFinancialRecordRepository()
		s.backups = memory.NewBackupRepository()
		s.audit = memory.NewAuditRepository()
		s.sessions = memory.NewSessionStore()
		s.templates = memory.NewTemplateRepository()
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, cfg.DB, log.Component("postgres"))
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		s.pool = pool
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("migraciones: %w", err)
			}
		}
		tx := postgres.NewTxRunner(pool)
		plans := postgres.NewPlanRepository(pool, tx)
		if seeded, err := plans.Seed(ctx, entitlement.DefaultMatrix()); err != nil {
			s.Close()
			return nil, fmt.Errorf("sembrar matriz de planes: %w", err)
		} else if seeded {
			log.Info().Msg("matriz de planes por defecto sembrada")
		}
		s.users = postgres.NewUserRepository(pool)
		s.plans = plans
		s.records = postgres.NewFinancialRecordRepository(pool, tx)
		s.backups = postgres.NewBackupRepository(pool)
		s.audit = postgres.NewAuditRepository(pool)
		s.sessions = postgres.NewSessionRepository(pool)
		s.templates = postgres.NewTemplateRepository(pool)
	default:
		return nil, fmt.Errorf("DATA_DRIVER desconocido %q", cfg.App.DataDriver)
	}

	if cfg.Redis.URL == "" {
		s.locks = memory.NewUserLocks()
		s.idem = memory.NewIdempotencyStore()
		return s, nil
	}
	rdb, err := redisstore.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.redis = rdb
	s.locks = redisstore.NewUserLocks(rdb)
	s.idem = redisstore.NewIdempotencyStore(rdb)
	// la ventana de 24h se comparte entre réplicas
	s.sessions = redisstore.NewSessionStore(rdb)
	return s, nil
}

// loadCatalog construye el catálogo inicial desde el repositorio de planes.
func loadCatalog(ctx context.Context, plans repository.PlanRepository) (*entitlement.Catalog, error) {
	m, err := plans.Load(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return entitlement.NewCatalog(1, entitlement.DefaultMatrix())
	}
	return entitlement.NewCatalog(m.Version, m.Tiers)
}

package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// TierSource planes que conceden una capacidad (el resolver).
type TierSource interface {
	TiersGranting(capability entity.Capability) []entity.PlanTier
}

// Runner lo que el scheduler ejecuta por usuario.
type Runner interface {
	RunAutomatic(ctx context.Context, userID string) (*entity.BackupRecord, error)
}

// Scheduler dispara el backup automático diario de todos los usuarios con backup.automatic.
type Scheduler struct {
	runner      Runner
	users       repository.UserRepository
	tiers       TierSource
	concurrency int
	log         zerolog.Logger
	cron        *cron.Cron
}

// SchedulerConfig programación en formato cron de 5 campos y zona horaria IANA.
type SchedulerConfig struct {
	Schedule    string
	Timezone    string
	Concurrency int
}

// RunSummary resultado de una corrida.
type RunSummary struct {
	Users     int
	Completed int
	Failed    int
}

// NewScheduler valida la programación y la zona horaria.
func NewScheduler(cfg SchedulerConfig, runner Runner, users repository.UserRepository, tiers TierSource, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: zona horaria %q: %w", cfg.Timezone, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	s := &Scheduler{
		runner:      runner,
		users:       users,
		tiers:       tiers,
		concurrency: cfg.Concurrency,
		log:         log,
		cron:        cron.New(cron.WithLocation(loc)),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		if _, err := s.RunAll(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("corrida de backups automáticos fallida")
		}
	}); err != nil {
		return nil, fmt.Errorf("scheduler: programación %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start arranca el cron en segundo plano.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop detiene el cron y espera a que termine la corrida en curso.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// RunAll ejecuta un backup automático por usuario habilitado, con concurrencia acotada.
// El fallo de un usuario no detiene a los demás; solo un error al listar usuarios se devuelve.
func (s *Scheduler) RunAll(ctx context.Context) (RunSummary, error) {
	tiers := s.tiers.TiersGranting(entity.CapBackupAutomatic)
	if len(tiers) == 0 {
		return RunSummary{}, nil
	}
	ids, err := s.users.ListEntitledIDs(ctx, tiers)
	if err != nil {
		return RunSummary{}, fmt.Errorf("scheduler: listar usuarios: %w", err)
	}

	results := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if _, err := s.runner.RunAutomatic(gctx, id); err != nil {
				s.log.Warn().Err(err).Str("user_id", id).Msg("backup automático fallido")
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	sum := RunSummary{Users: len(ids)}
	for _, ok := range results {
		if ok {
			sum.Completed++
		} else {
			sum.Failed++
		}
	}
	s.log.Info().Int("users", sum.Users).Int("completed", sum.Completed).Int("failed", sum.Failed).Msg("corrida de backups automáticos")
	return sum, nil
}

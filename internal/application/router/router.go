package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/internal/application/agents"
	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// Entitlements lo que el router consulta del resolver.
type Entitlements interface {
	ResolveUser(ctx context.Context, userID string) (*entity.User, entity.CapabilitySet, error)
	Denied(capability entity.Capability) *entitlement.DeniedError
}

// Config límites de despacho.
type Config struct {
	DispatchTimeout time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

// DefaultConfig 30s por intento, 3 reintentos, backoff 1s·2ⁿ con tope 8s.
func DefaultConfig() Config {
	return Config{DispatchTimeout: 30 * time.Second, MaxRetries: 3, BackoffBase: time.Second, BackoffMax: 8 * time.Second}
}

// CommandRouter lleva cada Command por
// Received → EntitlementChecked → {Denied | Dispatching} → {Completed | Failed}
// y escribe exactamente una entrada de auditoría por comando.
type CommandRouter struct {
	registry     *agents.Registry
	entitlements Entitlements
	locks        ports.UserLocks
	audit        *audit.Service
	cfg          Config
	log          zerolog.Logger
	newTimer     func() backoff.Timer
	now          func() time.Time
}

// Option ajustes opcionales (tests).
type Option func(*CommandRouter)

// WithTimer reemplaza el timer de backoff.
func WithTimer(f func() backoff.Timer) Option {
	return func(r *CommandRouter) { r.newTimer = f }
}

// New construye el router.
func New(registry *agents.Registry, ent Entitlements, locks ports.UserLocks, auditSvc *audit.Service, cfg Config, log zerolog.Logger, opts ...Option) *CommandRouter {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	r := &CommandRouter{
		registry:     registry,
		entitlements: ent,
		locks:        locks,
		audit:        auditSvc,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route hace una pasada completa del comando. Siempre devuelve un Result.
func (r *CommandRouter) Route(ctx context.Context, cmd entity.Command) *Result {
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = r.now().UTC()
	}
	res := &Result{CommandID: cmd.ID, Intent: cmd.Intent, State: entity.CommandReceived}
	log := r.log.With().Str("command_id", cmd.ID).Str("user_id", cmd.UserID).Str("intent", cmd.Intent).Logger()

	r.route(ctx, cmd, res, log)

	r.record(ctx, cmd, res, log)
	return res
}

func (r *CommandRouter) route(ctx context.Context, cmd entity.Command, res *Result, log zerolog.Logger) {
	agent, desc, err := r.registry.Lookup(cmd.Intent)
	if err != nil {
		failure(res, err)
		return
	}

	user, caps, err := r.entitlements.ResolveUser(ctx, cmd.UserID)
	if err != nil {
		failure(res, err)
		return
	}
	res.State = entity.CommandEntitlementChecked
	for _, capability := range requiredCapabilities(cmd.Channel, desc) {
		if !caps.Has(capability) {
			d := r.entitlements.Denied(capability)
			failure(res, d)
			res.UserMessage = entitlement.DenialMessage(user, d)
			log.Info().Str("capability", string(capability)).Str("required_tier", string(d.RequiredTier)).Msg("comando denegado por plan")
			return
		}
	}

	if err := r.registry.Validate(cmd.Intent, cmd.Payload); err != nil {
		failure(res, err)
		return
	}

	if desc.Mutating {
		release, err := r.locks.Shared(ctx, cmd.UserID)
		if err != nil {
			failure(res, err)
			return
		}
		defer release()
	}

	res.State = entity.CommandDispatching
	out, attempts, err := r.dispatch(ctx, agent, agents.Request{
		RequestID: cmd.ID,
		UserID:    cmd.UserID,
		Channel:   cmd.Channel,
		Payload:   cmd.Payload,
	}, log)
	res.Attempts = attempts
	if err != nil {
		failure(res, err)
		return
	}
	res.State = entity.CommandCompleted
	res.Outcome = entity.OutcomeAllowed
	res.Action = ActionNone
	if out != nil {
		res.UserMessage = out.Message
		res.Data = out.Data
	}
}

// requiredCapabilities la del agente y, por WhatsApp, también el canal.
func requiredCapabilities(ch entity.Channel, desc agents.Descriptor) []entity.Capability {
	if ch == entity.ChannelWhatsApp {
		return []entity.Capability{entity.CapWhatsAppChannel, desc.RequiredCapability}
	}
	return []entity.Capability{desc.RequiredCapability}
}

// dispatch ejecuta el agente con timeout por intento y reintenta los errores
// transitorios con backoff exponencial. Agotados los reintentos, un error
// transitorio se entrega como SubAgentUnavailable y uno de credencial como AuthExpired.
func (r *CommandRouter) dispatch(ctx context.Context, agent agents.Agent, req agents.Request, log zerolog.Logger) (*agents.Result, int, error) {
	var (
		out      *agents.Result
		attempts int
		lastKind egress.Kind
	)
	op := func() error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, r.cfg.DispatchTimeout)
		defer cancel()
		result, err := execute(actx, agent, req)
		if err == nil {
			out = result
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		lastKind = egress.Classify(err)
		switch lastKind {
		case egress.KindRetryable, egress.KindAuthExpired:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("sub-agente falló, reintentando")
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}
	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(r.policy(), ctx), notify, timer)
	if err == nil {
		return out, attempts, nil
	}
	if ctx.Err() != nil {
		return nil, attempts, fmt.Errorf("%w: %w", domain.ErrSubAgentUnavailable, err)
	}
	switch lastKind {
	case egress.KindRetryable:
		log.Error().Err(err).Int("attempts", attempts).Msg("sub-agente no disponible")
		return nil, attempts, fmt.Errorf("%w: %w", domain.ErrSubAgentUnavailable, err)
	case egress.KindAuthExpired:
		return nil, attempts, egress.AuthExpired(err)
	default:
		return nil, attempts, err
	}
}

type execution struct {
	result *agents.Result
	err    error
}

// execute corre el agente en su propia goroutine y corta en el deadline aunque
// el agente ignore el contexto. Un resultado tardío se descarta.
func execute(ctx context.Context, agent agents.Agent, req agents.Request) (*agents.Result, error) {
	done := make(chan execution, 1)
	go func() {
		result, err := agent.Execute(ctx, req)
		done <- execution{result: result, err: err}
	}()
	select {
	case ex := <-done:
		return ex.result, ex.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *CommandRouter) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BackoffBase
	b.Multiplier = 2
	b.MaxInterval = r.cfg.BackoffMax
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries))
}

func (r *CommandRouter) record(ctx context.Context, cmd entity.Command, res *Result, log zerolog.Logger) {
	meta := map[string]string{
		"channel":  string(cmd.Channel),
		"state":    string(res.State),
		"attempts": strconv.Itoa(res.Attempts),
	}
	if res.Code != "" {
		meta["code"] = res.Code
	}
	if res.RequiredTier != "" {
		meta["required_tier"] = string(res.RequiredTier)
	}
	reason := ""
	if res.Err != nil {
		reason = res.Err.Error()
	}
	actor := cmd.UserID
	if actor == "" {
		actor = "anonymous"
	}
	if err := r.audit.Record(context.WithoutCancel(ctx), actor, "command."+cmd.Intent, cmd.ID, res.Outcome, reason, meta); err != nil {
		log.Error().Err(err).Msg("no se pudo auditar el comando")
	}
}

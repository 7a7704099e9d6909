package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/meu-agente-api/internal/application/agents"
	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/router"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type fakeAgent struct {
	desc  agents.Descriptor
	calls atomic.Int32
	fn    func(ctx context.Context, req agents.Request) (*agents.Result, error)
}

func (a *fakeAgent) Descriptor() agents.Descriptor { return a.desc }

func (a *fakeAgent) Execute(ctx context.Context, req agents.Request) (*agents.Result, error) {
	a.calls.Add(1)
	if a.fn == nil {
		return &agents.Result{Message: "ok"}, nil
	}
	return a.fn(ctx, req)
}

// instantTimer dispara de inmediato y guarda las esperas pedidas.
type instantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer { return &instantTimer{c: make(chan time.Time, 1)} }

func (t *instantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c <- time.Now()
}
func (t *instantTimer) Stop()                  {}
func (t *instantTimer) C() <-chan time.Time    { return t.c }
func (t *instantTimer) Waits() []time.Duration { t.mu.Lock(); defer t.mu.Unlock(); return t.waits }

type countingTransport struct{ calls atomic.Int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("no debería llegar a la red")
}

type fixture struct {
	users    *memory.UserRepo
	auditLog *memory.AuditRepo
	locks    *memory.UserLocks
	registry *agents.Registry
	timer    *instantTimer
	router   *router.CommandRouter
}

func newFixture(t *testing.T, cfg router.Config, list ...agents.Agent) *fixture {
	t.Helper()
	users := memory.NewUserRepository()
	plans := memory.NewPlanRepository(entitlement.DefaultMatrix())
	cat, err := entitlement.NewCatalog(1, entitlement.DefaultMatrix())
	require.NoError(t, err)
	resolver := entitlement.NewResolver(users, plans, cat, zerolog.Nop())

	f := &fixture{
		users:    users,
		auditLog: memory.NewAuditRepository(),
		locks:    memory.NewUserLocks(),
		registry: agents.NewRegistry(),
		timer:    newInstantTimer(),
	}
	f.registry.MustRegister(list...)
	f.router = router.New(f.registry, resolver, f.locks, audit.NewService(f.auditLog, zerolog.Nop()), cfg, zerolog.Nop(),
		router.WithTimer(func() backoff.Timer { return f.timer }))

	f.addUser(t, "basic-1", "5511949746110", entity.PlanBasic, true)
	f.addUser(t, "business-1", "5511911112222", entity.PlanBusiness, true)
	f.addUser(t, "premium-1", "5511933334444", entity.PlanPremium, true)
	f.addUser(t, "inactivo-1", "5511955556666", entity.PlanPremium, false)
	return f
}

func (f *fixture) addUser(t *testing.T, id, phone string, tier entity.PlanTier, active bool) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &entity.User{
		ID: id, Phone: phone, PlanTier: tier, IsActive: active, SubscriptionActive: true, Role: entity.RoleCliente,
	}))
}

func (f *fixture) single(t *testing.T) entity.AuditEntry {
	t.Helper()
	all := f.auditLog.All()
	require.Len(t, all, 1, "exactamente una entrada por comando")
	return all[0]
}

func sdrAgent(fn func(context.Context, agents.Request) (*agents.Result, error)) *fakeAgent {
	return &fakeAgent{desc: agents.Descriptor{ID: "sdr", RequiredCapability: entity.CapAgentSDR}, fn: fn}
}

func cmd(user, intent string, payload string) entity.Command {
	return entity.Command{ID: "cmd-1", UserID: user, Channel: entity.ChannelWeb, Intent: intent, Payload: json.RawMessage(payload)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Entitlement
// ──────────────────────────────────────────────────────────────────────────────

func TestRoute_BasicDenegadoSinEjecutarAgente(t *testing.T) {
	agent := sdrAgent(nil)
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("basic-1", "sdr", `{}`))

	assert.Equal(t, entity.CommandDenied, res.State)
	assert.Equal(t, entity.OutcomeDenied, res.Outcome)
	assert.Equal(t, router.ActionUpgrade, res.Action)
	assert.Equal(t, entity.PlanBusiness, res.RequiredTier)
	assert.Contains(t, res.UserMessage, "Business")
	assert.ErrorIs(t, res.Err, domain.ErrEntitlementDenied)
	assert.Zero(t, agent.calls.Load())

	e := f.single(t)
	assert.Equal(t, "command.sdr", e.Action)
	assert.Equal(t, entity.OutcomeDenied, e.Outcome)
	assert.Equal(t, "business", e.Metadata["required_tier"])
}

func TestRoute_PlanMinimoPremium(t *testing.T) {
	agent := &fakeAgent{desc: agents.Descriptor{ID: "backup", RequiredCapability: entity.CapBackupManual}}
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "backup", `{}`))
	assert.Equal(t, entity.PlanPremium, res.RequiredTier)
	assert.Contains(t, res.UserMessage, "Premium")
	assert.Zero(t, agent.calls.Load())
}

func TestRoute_CuentaInactiva(t *testing.T) {
	agent := sdrAgent(nil)
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("inactivo-1", "sdr", `{}`))
	assert.Equal(t, entity.CommandDenied, res.State)
	assert.Equal(t, entitlement.InactiveMessage, res.UserMessage)
	assert.Zero(t, agent.calls.Load())
}

func TestRoute_WhatsAppExigeCanal(t *testing.T) {
	agent := &fakeAgent{desc: agents.Descriptor{ID: "finance_entry", RequiredCapability: entity.CapFinanceEntry}}
	f := newFixture(t, router.DefaultConfig(), agent)

	c := cmd("basic-1", "finance_entry", `{}`)
	c.Channel = entity.ChannelWhatsApp
	res := f.router.Route(context.Background(), c)
	assert.Equal(t, entity.CommandDenied, res.State)
	assert.Equal(t, entity.PlanBusiness, res.RequiredTier)
	assert.Zero(t, agent.calls.Load())

	c.Channel = entity.ChannelWeb
	res = f.router.Route(context.Background(), c)
	assert.Equal(t, entity.CommandCompleted, res.State)
}

func TestRoute_UsuarioDesconocido(t *testing.T) {
	agent := sdrAgent(nil)
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("nadie", "sdr", `{}`))
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeUserNotFound, res.Code)
	assert.Zero(t, agent.calls.Load())
	assert.Equal(t, entity.OutcomeError, f.single(t).Outcome)
}

// ──────────────────────────────────────────────────────────────────────────────
// Despacho
// ──────────────────────────────────────────────────────────────────────────────

func TestRoute_Completado(t *testing.T) {
	agent := sdrAgent(func(_ context.Context, req agents.Request) (*agents.Result, error) {
		return agents.JSONResult("Lead qualificado.", map[string]string{"request_id": req.RequestID})
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, entity.CommandCompleted, res.State)
	assert.Equal(t, entity.OutcomeAllowed, res.Outcome)
	assert.Equal(t, "Lead qualificado.", res.UserMessage)
	assert.JSONEq(t, `{"request_id":"cmd-1"}`, string(res.Data))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, entity.OutcomeAllowed, f.single(t).Outcome)
}

func TestRoute_IntentDesconocido(t *testing.T) {
	f := newFixture(t, router.DefaultConfig())

	res := f.router.Route(context.Background(), cmd("premium-1", "astrologia", `{}`))
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeUnknownIntent, res.Code)
	assert.ErrorIs(t, res.Err, domain.ErrUnknownIntent)

	e := f.single(t)
	assert.Equal(t, "command.astrologia", e.Action)
	assert.Equal(t, entity.OutcomeError, e.Outcome)
}

func TestRoute_PayloadInvalidoNoEjecuta(t *testing.T) {
	agent := &fakeAgent{desc: agents.Descriptor{
		ID:                 "finance_entry",
		RequiredCapability: entity.CapFinanceEntry,
		PayloadSchema:      `{"type":"object","required":["amount"]}`,
	}}
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("basic-1", "finance_entry", `{"descricao":"x"}`))
	assert.Equal(t, router.CodeInvalidPayload, res.Code)
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Zero(t, agent.calls.Load())
	assert.Zero(t, res.Attempts)
}

func TestRoute_DominioNoPermitidoSinReintento(t *testing.T) {
	transport := &countingTransport{}
	f := newFixture(t, router.DefaultConfig(), agents.NewScraperAgent(agents.DefaultScraperSources, transport))

	res := f.router.Route(context.Background(), cmd("premium-1", "scraper", `{"url":"https://blocked-source.com/precos"}`))
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeDomainNotAllowed, res.Code)
	assert.ErrorIs(t, res.Err, domain.ErrDomainNotAllowed)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, transport.calls.Load())
	assert.Empty(t, f.timer.Waits())
	assert.Equal(t, entity.OutcomeError, f.single(t).Outcome)
}

func TestRoute_ReintentaConBackoffYSeRinde(t *testing.T) {
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		return nil, egress.Retryable(errors.New("upstream 503"))
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeSubAgentUnavailable, res.Code)
	assert.Equal(t, router.ActionRetry, res.Action)
	assert.ErrorIs(t, res.Err, domain.ErrSubAgentUnavailable)
	assert.Equal(t, 4, res.Attempts)
	assert.EqualValues(t, 4, agent.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, f.timer.Waits())

	e := f.single(t)
	assert.Equal(t, entity.OutcomeError, e.Outcome)
	assert.Equal(t, "4", e.Metadata["attempts"])
}

func TestRoute_BackoffConTope(t *testing.T) {
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		return nil, egress.Retryable(errors.New("timeout"))
	})
	cfg := router.DefaultConfig()
	cfg.MaxRetries = 5
	f := newFixture(t, cfg, agent)

	f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}, f.timer.Waits())
}

func TestRoute_RecuperaTrasFalloTransitorio(t *testing.T) {
	var n atomic.Int32
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		if n.Add(1) < 3 {
			return nil, egress.Retryable(errors.New("502"))
		}
		return &agents.Result{Message: "feito"}, nil
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, entity.CommandCompleted, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, entity.OutcomeAllowed, f.single(t).Outcome)
}

func TestRoute_TokenExpiradoPideReautenticar(t *testing.T) {
	agent := &fakeAgent{
		desc: agents.Descriptor{ID: "calendar", RequiredCapability: entity.CapWorkspaceGoogle},
		fn: func(context.Context, agents.Request) (*agents.Result, error) {
			return nil, egress.AuthExpired(errors.New("invalid_grant"))
		},
	}
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "calendar", `{}`))
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeAuthExpired, res.Code)
	assert.Equal(t, router.ActionReauthenticate, res.Action)
	assert.ErrorIs(t, res.Err, domain.ErrAuthExpired)
	assert.Contains(t, res.UserMessage, "Google")
	assert.Equal(t, entity.OutcomeError, f.single(t).Outcome)
}

func TestRoute_NegacionDeCumplimientoEsDenied(t *testing.T) {
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		return nil, domain.ErrComplianceWindowClosed
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, entity.CommandDenied, res.State)
	assert.Equal(t, router.CodeComplianceWindowClosed, res.Code)
	assert.Empty(t, res.RequiredTier, "no es una negación de plan")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, entity.OutcomeDenied, f.single(t).Outcome)
}

func TestRoute_PlantillaNoAprobada(t *testing.T) {
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		return nil, errors.Join(domain.ErrComplianceWindowClosed, domain.ErrTemplateNotApproved)
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, router.CodeTemplateNotApproved, res.Code)
	assert.Equal(t, entity.OutcomeDenied, res.Outcome)
}

func TestRoute_TimeoutPorIntento(t *testing.T) {
	agent := sdrAgent(func(ctx context.Context, _ agents.Request) (*agents.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := router.DefaultConfig()
	cfg.DispatchTimeout = 5 * time.Millisecond
	cfg.MaxRetries = 1
	f := newFixture(t, cfg, agent)

	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Equal(t, router.CodeSubAgentUnavailable, res.Code)
	assert.Equal(t, 2, res.Attempts)
}

func TestRoute_AgenteQueIgnoraContextoNoCompleta(t *testing.T) {
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		time.Sleep(500 * time.Millisecond)
		return &agents.Result{Message: "tarde"}, nil
	})
	cfg := router.DefaultConfig()
	cfg.DispatchTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 0
	f := newFixture(t, cfg, agent)

	start := time.Now()
	res := f.router.Route(context.Background(), cmd("business-1", "sdr", `{}`))
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Equal(t, router.CodeSubAgentUnavailable, res.Code)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.NotEqual(t, "tarde", res.UserMessage)
	assert.Equal(t, entity.OutcomeError, f.single(t).Outcome)
}

func TestRoute_MutanteDuranteRestauracion(t *testing.T) {
	agent := &fakeAgent{desc: agents.Descriptor{ID: "finance_entry", RequiredCapability: entity.CapFinanceEntry, Mutating: true}}
	f := newFixture(t, router.DefaultConfig(), agent)

	release, err := f.locks.Exclusive(context.Background(), "basic-1")
	require.NoError(t, err)
	res := f.router.Route(context.Background(), cmd("basic-1", "finance_entry", `{}`))
	release()

	assert.Equal(t, router.CodeRestoreInProgress, res.Code)
	assert.Equal(t, router.ActionRetry, res.Action)
	assert.Zero(t, agent.calls.Load())

	res = f.router.Route(context.Background(), cmd("basic-1", "finance_entry", `{}`))
	assert.Equal(t, entity.CommandCompleted, res.State)
}

func TestRoute_ContextoCanceladoNoReintenta(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	agent := sdrAgent(func(context.Context, agents.Request) (*agents.Result, error) {
		cancel()
		return nil, egress.Retryable(errors.New("502"))
	})
	f := newFixture(t, router.DefaultConfig(), agent)

	res := f.router.Route(ctx, cmd("business-1", "sdr", `{}`))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, entity.CommandFailed, res.State)
	assert.Len(t, f.auditLog.All(), 1, "se audita aunque el contexto esté cancelado")
}

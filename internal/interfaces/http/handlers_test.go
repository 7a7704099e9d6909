package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/meu-agente-api/internal/application/agents"
	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/auth"
	"github.com/jhoicas/meu-agente-api/internal/application/backup"
	"github.com/jhoicas/meu-agente-api/internal/application/compliance"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/privacy"
	"github.com/jhoicas/meu-agente-api/internal/application/router"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/crypto"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/storage"
	apphttp "github.com/jhoicas/meu-agente-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/meu-agente-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const webhookSecret = "segredo-do-gateway"

type apiFixture struct {
	app      *fiber.App
	users    *memory.UserRepo
	auditLog *memory.AuditRepo
	locks    *memory.UserLocks
}

func newAPI(t *testing.T, rps int) *apiFixture {
	t.Helper()
	users := memory.NewUserRepository()
	plans := memory.NewPlanRepository(entitlement.DefaultMatrix())
	cat, err := entitlement.NewCatalog(1, entitlement.DefaultMatrix())
	require.NoError(t, err)
	resolver := entitlement.NewResolver(users, plans, cat, zerolog.Nop())

	auditLog := memory.NewAuditRepository()
	auditSvc := audit.NewService(auditLog, zerolog.Nop())
	records := memory.NewFinancialRecordRepository()
	locks := memory.NewUserLocks()
	idem := memory.NewIdempotencyStore()

	key := bytes.Repeat([]byte{7}, 32)
	cipher, err := crypto.NewBackupCipher(key)
	require.NoError(t, err)
	orch := backup.NewOrchestrator(backup.Deps{
		Entitlements: resolver,
		Records:      records,
		Backups:      memory.NewBackupRepository(),
		Store:        storage.NewMemoryStore("backups/"),
		Cipher:       cipher,
		Locks:        locks,
		Audit:        auditSvc,
		Log:          zerolog.Nop(),
	})

	registry := agents.NewRegistry()
	registry.MustRegister(
		agents.NewFinanceEntryAgent(records, idem),
		agents.NewBackupAgent(orch),
		agents.NewSDRAgent(nil, nil, idem),
	)
	cmdRouter := router.New(registry, resolver, locks, auditSvc, router.DefaultConfig(), zerolog.Nop())
	authUC := auth.NewAuthUseCase(users, locks, auditSvc, auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: 60, Issuer: testIssuer}).
		WithBcryptCost(bcrypt.MinCost)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:        authUC,
		Resolver:      resolver,
		Commands:      cmdRouter,
		Guard:         compliance.NewGuard(memory.NewSessionStore(), memory.NewTemplateRepository()),
		Backups:       orch,
		Audit:         auditSvc,
		Privacy:       privacy.NewEraseService(users, auditSvc),
		Users:         users,
		Idempotency:   idem,
		JWTSecret:     testJWTSecret,
		WebhookSecret: webhookSecret,
		RateRPS:       rps,
		RateBurst:     rps,
	})

	f := &apiFixture{app: app, users: users, auditLog: auditLog, locks: locks}
	f.addUser(t, "basic-1", "5511949746110", entity.PlanBasic, entity.RoleCliente)
	f.addUser(t, "premium-1", "5511987654321", entity.PlanPremium, entity.RoleCliente)
	f.addUser(t, "admin-1", "5511900000000", entity.PlanPremium, entity.RoleAdmin)
	return f
}

func (f *apiFixture) addUser(t *testing.T, id, phone string, tier entity.PlanTier, role string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &entity.User{
		ID: id, Phone: phone, PlanTier: tier, IsActive: true, SubscriptionActive: true, Role: role,
	}))
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, userID, "", role, testIssuer, testExpMin)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f *apiFixture) do(t *testing.T, method, path, authHeader string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *apiFixture) actions(actor string) []string {
	var out []string
	for _, e := range f.auditLog.All() {
		if e.ActorUserID == actor {
			out = append(out, e.Action+":"+string(e.Outcome))
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth y capacidades
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_SignupLoginYCapacidades(t *testing.T) {
	f := newAPI(t, 0)

	resp, _ := f.do(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{Phone: "(11) 91234-5678", Password: "segredo123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{Phone: "11912345678", Password: "segredo123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Phone: "11912345678", Password: "segredo123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = f.do(t, http.MethodGet, "/api/me/entitlements", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "basic", body["plan_tier"])
	caps := body["capabilities"].([]any)
	assert.Contains(t, caps, "finance.entry")
	assert.NotContains(t, caps, "backup.manual")

	resp, _ = f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Phone: "11912345678", Password: "errada123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Comandos
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_ComandoDenegadoPorPlan(t *testing.T) {
	f := newAPI(t, 0)
	resp, body := f.do(t, http.MethodPost, "/api/commands", bearer(t, "basic-1", entity.RoleCliente), dto.CommandRequest{
		Intent:  "sdr",
		Payload: json.RawMessage(`{"lead_phone":"5511999990000","message":"oi"}`),
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "denied", body["state"])
	assert.Equal(t, "ENTITLEMENT_DENIED", body["code"])
	assert.Equal(t, "upgrade", body["action"])
	assert.Equal(t, "business", body["required_tier"])
	assert.Contains(t, body["message"], "Business")
	assert.Equal(t, []string{"command.sdr:denied"}, f.actions("basic-1"))
}

func TestAPI_ComandoFinancieroCompletado(t *testing.T) {
	f := newAPI(t, 0)
	resp, body := f.do(t, http.MethodPost, "/api/commands", bearer(t, "basic-1", entity.RoleCliente), dto.CommandRequest{
		Intent:  "finance_entry",
		Payload: json.RawMessage(`{"type":"saida","category":"alimentação","amount":"42.50"}`),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "completed", body["state"])
	assert.Equal(t, "allowed", body["outcome"])
}

func TestAPI_ComandoPayloadInvalidoEIntentDesconocido(t *testing.T) {
	f := newAPI(t, 0)
	tok := bearer(t, "basic-1", entity.RoleCliente)

	resp, body := f.do(t, http.MethodPost, "/api/commands", tok, dto.CommandRequest{Intent: "finance_entry", Payload: json.RawMessage(`{"type":"x"}`)})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", body["code"])

	resp, body = f.do(t, http.MethodPost, "/api/commands", tok, dto.CommandRequest{Intent: "horoscopo"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "UNKNOWN_INTENT", body["code"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Backups
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_BackupManualBasicDenegadoYAuditado(t *testing.T) {
	f := newAPI(t, 0)
	resp, body := f.do(t, http.MethodPost, "/api/backups", bearer(t, "basic-1", entity.RoleCliente), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ENTITLEMENT_DENIED", body["code"])
	assert.Equal(t, "premium", body["required_tier"])
	assert.Equal(t, []string{"backup.manual:denied"}, f.actions("basic-1"))

	resp, _ = f.do(t, http.MethodGet, "/api/backups", bearer(t, "basic-1", entity.RoleCliente), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "backup.automatic está en todos los planes")
}

func TestAPI_BackupPremiumYRestauracion(t *testing.T) {
	f := newAPI(t, 0)
	tok := bearer(t, "premium-1", entity.RoleCliente)
	resp, _ := f.do(t, http.MethodPost, "/api/commands", tok, dto.CommandRequest{
		Intent:  "finance_entry",
		Payload: json.RawMessage(`{"type":"entrada","category":"vendas","amount":"100"}`),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/backups", tok, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "completed", body["status"])
	assert.EqualValues(t, 1, body["record_count"])
	id := body["id"].(string)

	resp, body = f.do(t, http.MethodPost, "/api/backups/"+id+"/restore", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 1, body["record_count"])

	resp, body = f.do(t, http.MethodPost, "/api/backups/"+id+"/restore", bearer(t, "basic-1", entity.RoleCliente), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "backup de otro usuario")
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestAPI_DescargaDeBackup(t *testing.T) {
	f := newAPI(t, 0)
	tok := bearer(t, "premium-1", entity.RoleCliente)
	resp, _ := f.do(t, http.MethodPost, "/api/commands", tok, dto.CommandRequest{
		Intent:  "finance_entry",
		Payload: json.RawMessage(`{"type":"entrada","category":"vendas","amount":"100"}`),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := f.do(t, http.MethodPost, "/api/backups", tok, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := body["id"].(string)

	resp, body = f.do(t, http.MethodGet, "/api/backups/"+id+"/download", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, resp.Header.Get("X-Content-Checksum"))
	assert.Equal(t, "premium-1", body["user_id"])
	assert.Len(t, body["records"], 1)

	resp, body = f.do(t, http.MethodGet, "/api/backups/"+id+"/download", bearer(t, "basic-1", entity.RoleCliente), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, f.actions("premium-1"), "backup.download:allowed")
}

// ──────────────────────────────────────────────────────────────────────────────
// Administración
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_CambioDePlanEfectivoEnLaSiguienteResolucion(t *testing.T) {
	f := newAPI(t, 0)
	basic := bearer(t, "basic-1", entity.RoleCliente)

	resp, _ := f.do(t, http.MethodPost, "/api/backups", basic, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := f.do(t, http.MethodPut, "/api/admin/users/basic-1/plan", bearer(t, "admin-1", entity.RoleAdmin), dto.ChangePlanRequest{PlanTier: "premium"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "premium", body["plan_tier"])

	resp, _ = f.do(t, http.MethodPost, "/api/backups", basic, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_CambioDePlanDuranteRestauracionEsConflicto(t *testing.T) {
	f := newAPI(t, 0)
	release, err := f.locks.Exclusive(context.Background(), "basic-1")
	require.NoError(t, err)
	defer release()

	resp, body := f.do(t, http.MethodPut, "/api/admin/users/basic-1/plan", bearer(t, "admin-1", entity.RoleAdmin), dto.ChangePlanRequest{PlanTier: "premium"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "RESTORE_IN_PROGRESS", body["code"])

	stored, _ := f.users.GetByID(context.Background(), "basic-1")
	assert.Equal(t, entity.PlanBasic, stored.PlanTier)
}

func TestAPI_AdminExigeRol(t *testing.T) {
	f := newAPI(t, 0)
	resp, _ := f.do(t, http.MethodPut, "/api/admin/users/basic-1/plan", bearer(t, "premium-1", entity.RoleCliente), dto.ChangePlanRequest{PlanTier: "premium"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_MatrizInvalidaRechazada(t *testing.T) {
	f := newAPI(t, 0)
	admin := bearer(t, "admin-1", entity.RoleAdmin)

	resp, body := f.do(t, http.MethodPut, "/api/admin/plans/premium", admin, dto.ReplaceTierRequest{Capabilities: []string{"finance.entry"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "CATALOG_INVALID", body["code"])

	resp, body = f.do(t, http.MethodGet, "/api/admin/plans", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["version"], "la matriz vigente no cambia")

	resp, _ = f.do(t, http.MethodPut, "/api/admin/plans/gold", admin, dto.ReplaceTierRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Webhook de WhatsApp
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_WebhookRefrescaVentanaYDescartaDuplicados(t *testing.T) {
	f := newAPI(t, 0)
	in := dto.WhatsAppInbound{From: "5511999990000", MessageID: "wamid.1", Timestamp: 1767225600}

	resp, _ := f.do(t, http.MethodPost, "/api/webhooks/whatsapp", "", in)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "sin secreto")

	resp, body := f.do(t, http.MethodPost, "/api/webhooks/whatsapp", "", in, "X-Webhook-Secret", webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-01-02T00:00:00Z", body["window_expires_at"])

	resp, body = f.do(t, http.MethodPost, "/api/webhooks/whatsapp", "", in, "X-Webhook-Secret", webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["duplicate"])
}

func TestAPI_WebhookTimestampFuturoNoEstiraLaVentana(t *testing.T) {
	f := newAPI(t, 0)
	future := time.Now().Add(72 * time.Hour)
	in := dto.WhatsAppInbound{From: "5511999990001", MessageID: "wamid.2", Timestamp: future.Unix()}

	before := time.Now()
	resp, body := f.do(t, http.MethodPost, "/api/webhooks/whatsapp", "", in, "X-Webhook-Secret", webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	expires, err := time.Parse(time.RFC3339Nano, body["window_expires_at"].(string))
	require.NoError(t, err)
	assert.False(t, expires.After(time.Now().Add(24*time.Hour)))
	assert.False(t, expires.Before(before.Add(24*time.Hour).Truncate(time.Second)))
}

func TestAPI_WebhookComandoBasicSinCanalWhatsApp(t *testing.T) {
	f := newAPI(t, 0)
	in := dto.WhatsAppInbound{
		From:      "5511949746110",
		MessageID: "wamid.2",
		Intent:    "finance_entry",
		Payload:   json.RawMessage(`{"type":"saida","category":"mercado","amount":"10"}`),
	}
	resp, body := f.do(t, http.MethodPost, "/api/webhooks/whatsapp", "", in, "X-Webhook-Secret", webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cmd := body["command"].(map[string]any)
	assert.Equal(t, "denied", cmd["state"])
	assert.Equal(t, "business", cmd["required_tier"])
	assert.Contains(t, cmd["message"], "WhatsApp")
}

// ──────────────────────────────────────────────────────────────────────────────
// Auditoría, LGPD y rate limit
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_BorradoLGPDDejaTombstone(t *testing.T) {
	f := newAPI(t, 0)
	tok := bearer(t, "basic-1", entity.RoleCliente)

	resp, body := f.do(t, http.MethodPost, "/api/privacy/erase", tok, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "data.erased", body["action"])

	resp, body = f.do(t, http.MethodGet, "/api/audit", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "data.erased", items[0].(map[string]any)["action"])
}

func TestAPI_RateLimitPorIP(t *testing.T) {
	f := newAPI(t, 1)
	resp, _ := f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", body["code"])

	resp, _ = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health fuera del límite")
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/auth"
	"github.com/jhoicas/meu-agente-api/internal/application/backup"
	"github.com/jhoicas/meu-agente-api/internal/application/compliance"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/application/privacy"
	"github.com/jhoicas/meu-agente-api/internal/application/router"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC        *auth.AuthUseCase
	Resolver      *entitlement.Resolver
	Commands      *router.CommandRouter
	Guard         *compliance.Guard
	Backups       *backup.Orchestrator
	Audit         *audit.Service
	Privacy       *privacy.EraseService
	Users         repository.UserRepository
	Idempotency   ports.IdempotencyStore
	JWTSecret     string
	WebhookSecret string
	RateRPS       int
	RateBurst     int
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", RateLimit(deps.RateRPS, deps.RateBurst))

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", authHandler.Signup)
	authGroup.Post("/login", authHandler.Login)

	// Webhook del gateway de WhatsApp (secreto compartido, sin JWT)
	commandHandler := NewCommandHandler(deps.Commands, deps.Guard, deps.Users, deps.Idempotency)
	api.Post("/webhooks/whatsapp", WebhookSecret(deps.WebhookSecret), commandHandler.WhatsAppWebhook)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	entHandler := NewEntitlementHandler(deps.Resolver, deps.AuthUC, deps.Audit)
	protected.Get("/me", authHandler.Me)
	protected.Get("/me/entitlements", entHandler.Mine)

	protected.Post("/commands", commandHandler.Execute)

	// Backups: el disparo manual y la restauración los decide (y audita) el orquestador.
	backupHandler := NewBackupHandler(deps.Backups)
	backups := protected.Group("/backups")
	backups.Get("/", RequireCapability(entity.CapBackupAutomatic, deps.Resolver), backupHandler.List)
	backups.Post("/", backupHandler.Trigger)
	backups.Get("/:id/download", backupHandler.Download)
	backups.Post("/:id/restore", backupHandler.Restore)

	auditHandler := NewAuditHandler(deps.Audit, deps.Privacy)
	protected.Get("/audit", auditHandler.List)
	protected.Post("/privacy/erase", auditHandler.Erase)

	// Administración
	admin := protected.Group("/admin", RequireRole(entity.RoleAdmin))
	admin.Get("/plans", entHandler.Catalog)
	admin.Put("/plans/:tier", entHandler.ReplaceTier)
	admin.Put("/users/:id/plan", entHandler.ChangePlan)
}

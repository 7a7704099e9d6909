package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/jhoicas/meu-agente-api/internal/application/agents"
	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/auth"
	"github.com/jhoicas/meu-agente-api/internal/application/backup"
	"github.com/jhoicas/meu-agente-api/internal/application/compliance"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/application/privacy"
	"github.com/jhoicas/meu-agente-api/internal/application/router"
	infraai "github.com/jhoicas/meu-agente-api/internal/infrastructure/ai"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/crypto"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/google"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/messaging"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/storage"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/whatsapp"
	httpRouter "github.com/jhoicas/meu-agente-api/internal/interfaces/http"
	"github.com/jhoicas/meu-agente-api/pkg/config"
	"github.com/jhoicas/meu-agente-api/pkg/logger"
)

const adsScope = "https://www.googleapis.com/auth/adwords"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("data_driver", cfg.App.DataDriver).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("persistencia")
	}
	defer st.Close()

	// Auditoría: append-only en la base y fan-out opcional a NATS / Kafka.
	var (
		publishers []ports.AuditPublisher
		closers    []io.Closer
	)
	if cfg.Messaging.NATSURL != "" {
		p, err := messaging.NewNATSPublisher(cfg.Messaging.NATSURL, cfg.Messaging.NATSSubject, cfg.App.Name)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a NATS")
		}
		publishers = append(publishers, p)
		closers = append(closers, p)
	}
	if len(cfg.Messaging.KafkaBrokers) > 0 {
		p, err := messaging.NewKafkaPublisher(cfg.Messaging.KafkaBrokers, cfg.Messaging.KafkaTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Kafka")
		}
		publishers = append(publishers, p)
		closers = append(closers, p)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	auditSvc := audit.NewService(st.audit, log.Component("audit"), publishers...)

	catalog, err := loadCatalog(ctx, st.plans)
	if err != nil {
		log.Fatal().Err(err).Msg("matriz de planes")
	}
	resolver := entitlement.NewResolver(st.users, st.plans, catalog, log.Component("entitlement"))
	go resolver.Watch(ctx, time.Minute)

	// Backups
	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("almacenamiento de backups")
	}
	cipher, err := crypto.NewBackupCipherFromBase64(cfg.Backup.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("BACKUP_ENCRYPTION_KEY")
	}
	orchestrator := backup.NewOrchestrator(backup.Deps{
		Entitlements: resolver,
		Records:      st.records,
		Backups:      st.backups,
		Store:        blobs,
		Cipher:       cipher,
		Locks:        st.locks,
		Audit:        auditSvc,
		Log:          log.Component("backup"),
	})
	scheduler, err := backup.NewScheduler(backup.SchedulerConfig{
		Schedule:    cfg.Backup.Schedule,
		Timezone:    cfg.Backup.Timezone,
		Concurrency: cfg.Backup.Concurrency,
	}, orchestrator, st.users, resolver, log.Component("scheduler"))
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler de backups")
	}
	scheduler.Start()

	// WhatsApp: todo envío saliente pasa por el guardián de la ventana de 24h.
	guard := compliance.NewGuard(st.sessions, st.templates)
	messenger := compliance.NewMessenger(guard, st.templates,
		whatsapp.NewCloudSender(cfg.WhatsApp.APIBase, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, nil),
		log.Component("whatsapp"))

	registry, err := buildAgents(ctx, cfg, st, orchestrator, messenger)
	if err != nil {
		log.Fatal().Err(err).Msg("registro de sub-agentes")
	}
	commands := router.New(registry, resolver, st.locks, auditSvc, router.Config{
		DispatchTimeout: cfg.Router.DispatchTimeout,
		MaxRetries:      cfg.Router.MaxRetries,
		BackoffBase:     cfg.Router.BackoffBase,
		BackoffMax:      cfg.Router.BackoffMax,
	}, log.Component("router"))

	authUC := auth.NewAuthUseCase(st.users, st.locks, auditSvc, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 45,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Meu Agente API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:        authUC,
		Resolver:      resolver,
		Commands:      commands,
		Guard:         guard,
		Backups:       orchestrator,
		Audit:         auditSvc,
		Privacy:       privacy.NewEraseService(st.users, auditSvc),
		Users:         st.users,
		Idempotency:   st.idem,
		JWTSecret:     cfg.JWT.Secret,
		WebhookSecret: cfg.WhatsApp.WebhookSecret,
		RateRPS:       cfg.RateLimit.RPS,
		RateBurst:     cfg.RateLimit.Burst,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	stop()
	scheduler.Stop()

	log.Info().Msg("aplicación detenida")
}

// buildAgents registra los sub-agentes. Cada uno recibe un cliente HTTP
// montado sobre su propio egress.Guard.
func buildAgents(ctx context.Context, cfg *config.Config, st *stores, orch *backup.Orchestrator, sender agents.MessageSender) (*agents.Registry, error) {
	sdrLLM, err := infraai.NewLLM(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, agents.NewHTTPClient(agents.SDRDescriptor(), nil))
	if err != nil {
		return nil, err
	}
	marketingClient := agents.NewHTTPClient(agents.MarketingDescriptor(), nil)
	marketingLLM, err := infraai.NewLLM(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, marketingClient)
	if err != nil {
		return nil, err
	}

	// Ads: refresh token de la cuenta gestora; el intercambio también sale por el guard.
	adsOAuth := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, adsScope)
	adsTokens := adsOAuth.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, marketingClient),
		&oauth2.Token{RefreshToken: cfg.Google.AdsRefreshToken})
	ads := google.NewAdsClient(adsTokens, cfg.Google.AdsDevToken, cfg.Google.AdsCustomerID, marketingClient)

	// TODO: persistir los tokens de Workspace en Postgres; hoy se pierden al reiniciar.
	calendarClient := google.NewCalendarClient(
		google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, calendar.CalendarEventsScope),
		google.NewMemoryTokenStore(),
		agents.NewHTTPClient(agents.CalendarDescriptor(), nil),
	)

	registry := agents.NewRegistry()
	for _, a := range []agents.Agent{
		agents.NewFinanceEntryAgent(st.records, st.idem),
		agents.NewBackupAgent(orch),
		agents.NewSDRAgent(sdrLLM, sender, st.idem),
		agents.NewMarketingAgent(ads, marketingLLM, sender, st.idem),
		agents.NewCalendarAgent(calendarClient),
		agents.NewScraperAgent(cfg.Scraper.Sources, nil),
	} {
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

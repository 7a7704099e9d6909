// seed_plans prepara una base PostgreSQL nueva: aplica migraciones, siembra la
// matriz de planes por defecto, las plantillas de WhatsApp aprobadas y, con
// -demo, un usuario de demostración por plan.
//
// Uso: go run ./cmd/seed_plans [-demo] [-password segredo123]
// Lee la conexión de las mismas variables que la API (DATABASE_URL o DB_*).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/meu-agente-api/internal/application/compliance"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/postgres"
	"github.com/jhoicas/meu-agente-api/pkg/config"
)

// templates plantillas aprobadas en el WhatsApp Manager.
var templates = []struct {
	id, name, body string
}{
	{"lembrete_pagamento", "Lembrete de pagamento", "Olá {{1}}, sua conta {{2}} vence em {{3}}."},
	{"follow_up_lead", "Follow-up de lead", "Olá {{1}}, tudo bem? Podemos continuar nossa conversa sobre {{2}}?"},
	{"alerta_campanha", "Alerta de campanha", "Atenção: a campanha {{1}} precisa de revisão. {{2}}"},
	{"backup_concluido", "Backup concluído", "Seu backup de {{1}} foi concluído com sucesso."},
}

var demoUsers = []struct {
	phone, name string
	tier        entity.PlanTier
	role        string
}{
	{"5511900000001", "Demo Basic", entity.PlanBasic, entity.RoleCliente},
	{"5511900000002", "Demo Business", entity.PlanBusiness, entity.RoleCliente},
	{"5511900000003", "Demo Premium", entity.PlanPremium, entity.RoleCliente},
	{"5511900000000", "Admin", entity.PlanPremium, entity.RoleAdmin},
}

func main() {
	demo := flag.Bool("demo", false, "crear usuarios de demostración")
	password := flag.String("password", "segredo123", "contraseña de los usuarios de demostración")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("cargar configuración", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB, zerolog.Nop())
	if err != nil {
		fail("conexión a PostgreSQL", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		fail("migraciones", err)
	}

	plans := postgres.NewPlanRepository(pool, postgres.NewTxRunner(pool))
	seeded, err := plans.Seed(ctx, entitlement.DefaultMatrix())
	if err != nil {
		fail("matriz de planes", err)
	}
	if seeded {
		fmt.Println("Matriz de planes sembrada (v1)")
	} else {
		fmt.Println("Matriz de planes ya existente, sin cambios")
	}

	tpls := postgres.NewTemplateRepository(pool)
	for _, t := range templates {
		if err := tpls.Upsert(ctx, &entity.Template{ID: t.id, Name: t.name, Approved: true, BodyHash: compliance.BodyHash(t.body)}); err != nil {
			fail("plantilla "+t.id, err)
		}
	}
	fmt.Printf("Plantillas aprobadas: %d\n", len(templates))

	if !*demo {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fail("hash de contraseña", err)
	}
	users := postgres.NewUserRepository(pool)
	for _, d := range demoUsers {
		existing, err := users.GetByPhone(ctx, d.phone)
		if err != nil {
			fail("leer usuario "+d.phone, err)
		}
		if existing != nil {
			continue
		}
		now := time.Now().UTC()
		if err := users.Create(ctx, &entity.User{
			ID:                 uuid.New().String(),
			Phone:              d.phone,
			Name:               d.name,
			PasswordHash:       string(hash),
			PlanTier:           d.tier,
			SubscriptionActive: true,
			IsActive:           true,
			Role:               d.role,
			CreatedAt:          now,
			UpdatedAt:          now,
		}); err != nil {
			fail("crear usuario "+d.phone, err)
		}
		fmt.Printf("Usuario %s (%s) creado\n", d.phone, d.tier)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

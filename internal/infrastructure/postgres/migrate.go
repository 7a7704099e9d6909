package postgres

import (
	"context"
	"fmt"
)

// schema idempotente; se aplica al arrancar si DB_AUTO_MIGRATE=true.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		plan_tier TEXT NOT NULL DEFAULT 'basic',
		subscription_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		role TEXT NOT NULL DEFAULT 'cliente',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_users_plan_tier ON users(plan_tier) WHERE is_active AND subscription_active;`,
	`CREATE TABLE IF NOT EXISTS plan_matrix (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		version BIGINT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS plan_capabilities (
		tier TEXT NOT NULL,
		capability TEXT NOT NULL,
		PRIMARY KEY (tier, capability)
	);`,
	// Los registros financieros se versionan por generación; record_heads apunta a la vigente.
	`CREATE TABLE IF NOT EXISTS record_heads (
		user_id TEXT PRIMARY KEY,
		generation BIGINT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS financial_records (
		user_id TEXT NOT NULL,
		generation BIGINT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		amount NUMERIC(18,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, generation, id)
	);`,
	`CREATE TABLE IF NOT EXISTS backups (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		content_checksum TEXT NOT NULL DEFAULT '',
		record_count INTEGER NOT NULL DEFAULT 0,
		storage_location TEXT NOT NULL DEFAULT '',
		failed_step TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_backups_user_created ON backups(user_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_backups_user_kind_completed ON backups(user_id, kind, created_at DESC) WHERE status = 'completed';`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		actor_user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		metadata JSONB NULL,
		ts TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor_ts ON audit_entries(actor_user_id, ts DESC);`,
	// Append-only también a nivel de base: UPDATE y DELETE fallan.
	`CREATE OR REPLACE FUNCTION audit_entries_immutable() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'audit_entries es append-only';
	END;
	$$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS trg_audit_entries_immutable ON audit_entries;`,
	`CREATE TRIGGER trg_audit_entries_immutable BEFORE UPDATE OR DELETE ON audit_entries
		FOR EACH ROW EXECUTE FUNCTION audit_entries_immutable();`,
	`CREATE TABLE IF NOT EXISTS messaging_sessions (
		contact_phone TEXT PRIMARY KEY,
		window_opened_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS whatsapp_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		body_hash TEXT NOT NULL DEFAULT ''
	);`,
}

// Migrate aplica el schema en orden.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migración %d: %w", i, err)
		}
	}
	return nil
}

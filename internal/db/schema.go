package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentencias idempotentes: el esquema se puede aplicar sobre una base ya
// poblada durante un rolling upgrade sin romper nada.
var coreStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		picture_url TEXT NOT NULL DEFAULT '',
		auth_provider TEXT NOT NULL DEFAULT 'email',
		auth_subject TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMPTZ
	)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS subscription_status TEXT NOT NULL DEFAULT 'free'`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS has_book BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS stripe_customer_id TEXT NOT NULL DEFAULT ''`,
	`CREATE TABLE IF NOT EXISTS features (
		key TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		target_url TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

var analyticsStatements = []string{
	`CREATE TABLE IF NOT EXISTS page_views (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		page TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		device TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		page TEXT NOT NULL DEFAULT '',
		element TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS page_views_created_at_idx ON page_views (created_at)`,
	`CREATE INDEX IF NOT EXISTS clicks_created_at_idx ON clicks (created_at)`,
}

// InitSchema aplica el esquema base. Se ejecuta una sola vez en el arranque,
// antes de aceptar tráfico.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range coreStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InitAnalytics aplica las tablas de analítica. Un fallo aquí degrada la
// analítica pero no debe impedir el arranque del servicio.
func InitAnalytics(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range analyticsStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

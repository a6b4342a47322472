package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/introhq/introhq/internal/config"
	"github.com/introhq/introhq/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewWithPool creates a PostgresStore over an existing pool. Tests pass a
// pgxmock pool here.
func NewWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for query helpers that build their
// own SQL.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// migrations are applied in order; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		timezone TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS cities_name_state_country_idx
		ON cities (name, state, country)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		position TEXT,
		company_name TEXT,
		title TEXT,
		role TEXT,
		phone TEXT,
		work_phone TEXT,
		home_phone TEXT,
		website_url TEXT,
		address TEXT,
		additional_addresses TEXT,
		city TEXT,
		state TEXT,
		country TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		timezone TEXT,
		birthday TEXT,
		notes TEXT,
		tags JSONB NOT NULL DEFAULT '[]',
		industries JSONB NOT NULL DEFAULT '[]',
		socials JSONB NOT NULL DEFAULT '{}',
		search_index TEXT NOT NULL DEFAULT '',
		on_platform BOOLEAN NOT NULL DEFAULT false,
		has_sync BOOLEAN NOT NULL DEFAULT false,
		needs_sync BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS contacts_user_email_idx
		ON contacts (user_id, email) WHERE email IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS contacts_user_idx ON contacts (user_id)`,
	`CREATE TABLE IF NOT EXISTS introductions (
		id UUID PRIMARY KEY,
		introduced_from_id UUID,
		introduced_from_email TEXT,
		introduced_from_first_name TEXT,
		introduced_from_last_name TEXT,
		introduced_id UUID,
		introduced_email TEXT,
		introduced_first_name TEXT,
		introduced_last_name TEXT,
		introduced_status TEXT NOT NULL DEFAULT 'pending',
		introduced_is_attempt BOOLEAN NOT NULL DEFAULT false,
		introduced_message TEXT NOT NULL DEFAULT 'new introduction',
		introduced_to_id UUID,
		introduced_to_email TEXT,
		introduced_to_first_name TEXT,
		introduced_to_last_name TEXT,
		introduced_to_status TEXT NOT NULL DEFAULT 'pending',
		introduced_to_is_attempt BOOLEAN NOT NULL DEFAULT false,
		introduced_to_message TEXT NOT NULL DEFAULT 'new introduction',
		over_all_status TEXT NOT NULL DEFAULT 'pending',
		request_status TEXT,
		message TEXT NOT NULL DEFAULT '',
		reminder_message TEXT,
		revoke BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS introductions_from_email_idx
		ON introductions (introduced_from_email)`,
	`CREATE INDEX IF NOT EXISTS introductions_created_idx
		ON introductions (created_at DESC)`,
}

// Migrate creates the schema. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

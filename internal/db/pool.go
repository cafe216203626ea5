package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floresloli/pedidos-factura-service/internal/common"
)

// Pool is the global database connection pool
var Pool *pgxpool.Pool

// ErrNoDatabase is returned by every query when persistence is not configured
var ErrNoDatabase = common.NewAppError("NO_DATABASE", "database not available", common.ErrUnavailable)

// Init initializes the database connection pool and creates the schema.
// An empty URL means the service runs without persistence.
func Init(ctx context.Context, databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("no database configuration")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	Pool = pool
	return nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}

// Available reports whether persistence is configured
func Available() bool {
	return Pool != nil
}

const schema = `
CREATE TABLE IF NOT EXISTS pedidos_facturas (
	id             uuid PRIMARY KEY,
	numero         text NOT NULL,
	fecha          text NOT NULL,
	cliente        text NOT NULL,
	texto_original text NOT NULL DEFAULT '',
	items          jsonb NOT NULL DEFAULT '[]'::jsonb,
	subtotal       numeric(12,2) NOT NULL DEFAULT 0,
	iva            numeric(12,2) NOT NULL DEFAULT 0,
	total          numeric(12,2) NOT NULL DEFAULT 0,
	pdf_nombre     text NOT NULL DEFAULT '',
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pedidos_facturas_numero_idx ON pedidos_facturas (numero);
CREATE INDEX IF NOT EXISTS pedidos_facturas_created_idx ON pedidos_facturas (created_at DESC);

CREATE TABLE IF NOT EXISTS usuarios (
	id            uuid PRIMARY KEY,
	email         text NOT NULL UNIQUE,
	nombre        text NOT NULL DEFAULT '',
	rol           text NOT NULL DEFAULT 'empleado',
	password_hash text NOT NULL,
	activo        boolean NOT NULL DEFAULT true,
	ultimo_acceso timestamptz
);
`

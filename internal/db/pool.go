package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cypherarest/poscore/internal/config"
)

// NewPool builds the process-wide connection pool, matching the bounds the
// teacher's apps/api/server/server.go applies to its own pgxpool.Config.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	// SET LOCAL already scopes the RLS session variables (§4.2) to the
	// transaction that set them, but AfterRelease resets them explicitly as
	// well: a blanket RESET ALL is never issued, only the specific names the
	// tenant context binds.
	poolCfg.AfterRelease = func(conn *pgx.Conn) bool {
		conn.Exec(context.Background(), `
			SELECT
				set_config('app.current_user_id', '', false),
				set_config('app.current_user_email', '', false),
				set_config('app.current_user_role', '', false),
				set_config('app.current_restaurant_id', '', false),
				set_config('app.is_platform_owner', '', false)`)
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// SchemaVersion reads the schema_migrations marker row left by the
// out-of-process migration tool (§6: "the core fails fast on schema-version
// mismatch").
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var version string
	err := pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY applied_at DESC LIMIT 1`).Scan(&version)
	return version, err
}

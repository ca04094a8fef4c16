package repository

import (
	"context"
	"fmt"
	"time"

	"shortly/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// Bootstrap создаёт схему, если её ещё нет. Полноценные миграции живут
// вне репозитория; этого достаточно для локального запуска и тестов.
func (db *PostgresDB) Bootstrap(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id           BIGSERIAL PRIMARY KEY,
			username     TEXT NOT NULL UNIQUE,
			email        TEXT NOT NULL UNIQUE,
			password     TEXT NOT NULL,
			credit_limit INT NOT NULL DEFAULT 10,
			usage        INT NOT NULL DEFAULT 0,
			is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS links (
			id           BIGSERIAL PRIMARY KEY,
			short_code   TEXT NOT NULL UNIQUE,
			original_url TEXT NOT NULL,
			click_count  BIGINT NOT NULL DEFAULT 0,
			user_id      BIGINT REFERENCES users(id),
			expires_at   TIMESTAMPTZ,
			is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS clicks (
			id         BIGSERIAL PRIMARY KEY,
			link_id    BIGINT NOT NULL REFERENCES links(id),
			ip_address TEXT,
			user_agent TEXT,
			referer    TEXT,
			clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_links_user_id ON links(user_id);
		CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id);
	`

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return nil
}

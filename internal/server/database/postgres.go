package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_accounts",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id             VARCHAR(64)  PRIMARY KEY,
				email          VARCHAR(255) NOT NULL DEFAULT '',
				name           VARCHAR(255) NOT NULL DEFAULT '',
				account_status VARCHAR(16)  NOT NULL DEFAULT 'ACTIVE',
				banned_reason  TEXT,
				banned_at      TIMESTAMPTZ,
				created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS ban_events (
				id         VARCHAR(36)  PRIMARY KEY,
				user_id    VARCHAR(64)  NOT NULL REFERENCES users(id),
				reason     TEXT         NOT NULL,
				source     VARCHAR(64)  NOT NULL,
				created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS user_profiles (
				user_id          VARCHAR(64) PRIMARY KEY REFERENCES users(id),
				total_files      BIGINT      NOT NULL DEFAULT 0,
				total_storage    BIGINT      NOT NULL DEFAULT 0,
				scans_performed  BIGINT      NOT NULL DEFAULT 0,
				threats_detected BIGINT      NOT NULL DEFAULT 0
			);
			CREATE TABLE IF NOT EXISTS teams (
				id         VARCHAR(36)  PRIMARY KEY,
				name       VARCHAR(255) NOT NULL,
				owner_id   VARCHAR(64)  NOT NULL REFERENCES users(id),
				created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS team_members (
				team_id    VARCHAR(36) NOT NULL REFERENCES teams(id),
				user_id    VARCHAR(64) NOT NULL REFERENCES users(id),
				role       VARCHAR(32) NOT NULL DEFAULT 'MEMBER',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (team_id, user_id)
			);
		`,
	},
	{
		Version: "000002_create_files_and_scans",
		SQL: `
			CREATE TABLE IF NOT EXISTS files (
				id            VARCHAR(36)  PRIMARY KEY,
				owner_id      VARCHAR(64)  NOT NULL REFERENCES users(id),
				team_id       VARCHAR(36)  REFERENCES teams(id),
				name          VARCHAR(255) NOT NULL,
				original_name VARCHAR(255) NOT NULL,
				size          BIGINT       NOT NULL,
				mime_type     VARCHAR(255) NOT NULL,
				extension     VARCHAR(32)  NOT NULL,
				hash          VARCHAR(64)  NOT NULL,
				object_name   VARCHAR(255) NOT NULL,
				status        VARCHAR(16)  NOT NULL,
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);
			CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id);
			CREATE TABLE IF NOT EXISTS scan_results (
				id            VARCHAR(36)  PRIMARY KEY,
				file_id       VARCHAR(36)  NOT NULL,
				status        VARCHAR(16)  NOT NULL,
				is_malware    BOOLEAN      NOT NULL DEFAULT FALSE,
				confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
				risk_score    INTEGER      NOT NULL DEFAULT 0,
				threat_level  VARCHAR(16)  NOT NULL DEFAULT 'SAFE',
				threat_type   VARCHAR(128),
				threat_family VARCHAR(128),
				scan_date     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				completed_at  TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_scan_results_file ON scan_results(file_id, scan_date DESC);
			CREATE TABLE IF NOT EXISTS quarantines (
				id             VARCHAR(36) PRIMARY KEY,
				file_id        VARCHAR(36) NOT NULL,
				scan_result_id VARCHAR(36),
				reason         TEXT        NOT NULL,
				created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS malware_attempts (
				id           VARCHAR(36)  PRIMARY KEY,
				user_id      VARCHAR(64)  NOT NULL,
				file_name    VARCHAR(255) NOT NULL,
				file_size    BIGINT       NOT NULL,
				file_hash    VARCHAR(64)  NOT NULL,
				mime_type    VARCHAR(255) NOT NULL,
				confidence   DOUBLE PRECISION NOT NULL,
				threat_level VARCHAR(16)  NOT NULL,
				action_taken VARCHAR(32)  NOT NULL,
				ip_address   VARCHAR(64)  NOT NULL,
				user_agent   TEXT         NOT NULL,
				created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		Version: "000003_create_shares",
		SQL: `
			CREATE TABLE IF NOT EXISTS shares (
				id             VARCHAR(36)  PRIMARY KEY,
				file_id        VARCHAR(36)  NOT NULL,
				created_by     VARCHAR(64)  NOT NULL,
				link_token     VARCHAR(64)  NOT NULL UNIQUE,
				password_hash  VARCHAR(255),
				expires_at     TIMESTAMPTZ,
				max_downloads  INTEGER,
				download_count INTEGER      NOT NULL DEFAULT 0,
				permissions    TEXT[]       NOT NULL DEFAULT '{}',
				created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS downloads (
				id            VARCHAR(36) PRIMARY KEY,
				share_id      VARCHAR(36) NOT NULL,
				file_id       VARCHAR(36) NOT NULL,
				ip_address    VARCHAR(64) NOT NULL,
				user_agent    TEXT        NOT NULL,
				downloaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_downloads_share ON downloads(share_id);
			CREATE TABLE IF NOT EXISTS notifications (
				id         VARCHAR(36)  PRIMARY KEY,
				user_id    VARCHAR(64)  NOT NULL,
				type       VARCHAR(32)  NOT NULL,
				title      VARCHAR(255) NOT NULL,
				message    TEXT         NOT NULL,
				is_read    BOOLEAN      NOT NULL DEFAULT FALSE,
				data       TEXT,
				created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
		`,
	},
	{
		Version: "000004_files_hash_unique",
		SQL: `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_files_hash_user_scope
				ON files(hash, owner_id)
				WHERE team_id IS NULL AND status <> 'DELETED';
			CREATE UNIQUE INDEX IF NOT EXISTS idx_files_hash_team_scope
				ON files(hash, team_id)
				WHERE team_id IS NOT NULL AND status <> 'DELETED';
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

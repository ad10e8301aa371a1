package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// dimensionsPlaceholder is replaced with the configured embedding dimension in every migration.
const dimensionsPlaceholder = "{{EMBEDDING_DIMENSIONS}}"

// Migrator is satisfied by *pgx.Conn and *pgxpool.Pool.
type Migrator interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate applies pending schema migrations in file name order. Each file runs in its own
// transaction and is recorded in schema_migrations. The vector extension must be creatable
// by the connecting role.
//
// Run it on a connection without pgvector type registration: the vector type does not
// exist before the first migration.
func Migrate(ctx context.Context, db Migrator, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("migrate: invalid embedding dimensions %d", dimensions)
	}

	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("migrate: list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")

		data, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", name, err)
		}

		sql := strings.ReplaceAll(string(data), dimensionsPlaceholder, strconv.Itoa(dimensions))

		applied, err := applyMigration(ctx, db, version, sql)
		if err != nil {
			return err
		}

		if applied {
			slog.Info("applied migration", "version", version)
		}
	}

	return nil
}

func applyMigration(ctx context.Context, db Migrator, version, sql string) (bool, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("migrate %s: begin: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes concurrent starters; released at commit.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('schema_migrations'))"); err != nil {
		return false, fmt.Errorf("migrate %s: lock: %w", version, err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("migrate %s: check version: %w", version, err)
	}

	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("migrate %s: exec: %w", version, err)
	}

	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, fmt.Errorf("migrate %s: record version: %w", version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("migrate %s: commit: %w", version, err)
	}

	return true, nil
}

// MigrateURL opens a dedicated connection, applies migrations and closes it.
func MigrateURL(ctx context.Context, databaseURL string, dimensions int) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	return Migrate(ctx, conn, dimensions)
}

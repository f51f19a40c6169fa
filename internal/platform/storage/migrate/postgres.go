package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresLockKey serialises concurrent migrators on one database.
const postgresLockKey int64 = 0x726f73746572

// ApplyPostgres executes embedded migrations against a PostgreSQL pool.
// Files must be idempotent DDL; a failed statement aborts its transaction.
func ApplyPostgres(ctx context.Context, pool *pgxpool.Pool, migrationFS fs.FS, migrationRoot string) error {
	if pool == nil {
		return fmt.Errorf("postgres pool is required")
	}
	files, err := readMigrations(migrationFS, migrationRoot)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", postgresLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", postgresLockKey)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		applied, err := postgresApplied(ctx, conn.Conn(), file.name)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file.name, err)
		}
		if applied || strings.TrimSpace(file.up) == "" {
			continue
		}

		err = pgx.BeginFunc(ctx, conn.Conn(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, file.up); err != nil {
				return fmt.Errorf("exec migration %s: %w", file.name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO "+migrationTable+" (name) VALUES ($1) ON CONFLICT (name) DO NOTHING",
				file.name,
			); err != nil {
				return fmt.Errorf("record migration %s: %w", file.name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func postgresApplied(ctx context.Context, conn *pgx.Conn, name string) (bool, error) {
	var found int
	err := conn.QueryRow(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = $1", name).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

package migrations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// migrationLockID keys the advisory lock held while migrating, so that two instances
// starting together apply each file once
const migrationLockID int64 = 0x616476697372 // "advisr"

// Migrator applies numbered SQL files from a directory, recording each version in
// schema_migrations so that it runs once
type Migrator struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *pgxpool.Pool, logger zerolog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

type migrationFile struct {
	version string
	name    string
	path    string
}

// parseMigration splits "001_init.sql" into version "001"
func parseMigration(path string) (migrationFile, error) {
	name := filepath.Base(path)
	version, _, ok := strings.Cut(name, "_")
	if !ok || version == "" {
		return migrationFile{}, fmt.Errorf("migration %s has no version prefix", name)
	}
	return migrationFile{version: version, name: name, path: path}, nil
}

// listMigrations returns the .sql files of dirPath in name order
func listMigrations(dirPath string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var files []migrationFile
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		f, err := parseMigration(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		// two files sharing a version would leave the second one unapplied forever
		if other, dup := seen[f.version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %s", other, f.name, f.version)
		}
		seen[f.version] = f.name
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func ensureMigrationTableExists(ctx context.Context, conn *pgxpool.Conn) error {
	_, err := conn.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`)
	if err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}
	return nil
}

func isMigrationApplied(ctx context.Context, conn *pgxpool.Conn, version string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1);`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

// MigrateFromDirectory finds and executes all SQL files in a directory in name order
func (m *Migrator) MigrateFromDirectory(ctx context.Context, dirPath string) error {
	files, err := listMigrations(dirPath)
	if err != nil {
		return err
	}
	return m.run(ctx, files)
}

// run applies files on one connection holding the migration lock
func (m *Migrator) run(ctx context.Context, files []migrationFile) error {
	conn, err := m.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	// Session-level lock: released explicitly, or when the connection closes
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to release migration lock")
		}
	}()

	if err := ensureMigrationTableExists(ctx, conn); err != nil {
		return err
	}

	for _, f := range files {
		if err := m.apply(ctx, conn, f); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, conn *pgxpool.Conn, f migrationFile) error {
	// Checked under the lock, another instance may have just applied it
	applied, err := isMigrationApplied(ctx, conn, f.version)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug().Str("file", f.name).Msg("Migration already applied, skipping")
		return nil
	}

	content, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	// The schema change and its bookkeeping row commit together
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("migration %s failed: %w", f.name, err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, f.version, time.Now()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.logger.Info().Str("file", f.name).Str("version", f.version).Msg("Migration applied")
	return nil
}

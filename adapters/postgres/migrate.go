package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	db *sqlx.DB
	fs fs.FS
}

// NewMigrator creates a migrator over the embedded migration files
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, fs: migrationFiles}
}

// MigrationFile represents a migration file
type MigrationFile struct {
	Version string
	Path    string
}

// Up executes all pending migrations and returns the versions applied
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := FindMigrationFiles(m.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	todo, err := pendingMigrations(m.fs, files, applied)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, p := range todo {
		if err := m.apply(ctx, p); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", p.file.Version, err)
		}
		done = append(done, p.file.Version)
	}
	return done, nil
}

type pendingMigration struct {
	file     MigrationFile
	body     []byte
	checksum string
}

// pendingMigrations returns the files not yet applied. An applied file
// whose contents no longer match its recorded checksum is an error.
func pendingMigrations(fsys fs.FS, files []MigrationFile, applied map[string]string) ([]pendingMigration, error) {
	var todo []pendingMigration
	for _, file := range files {
		body, err := fs.ReadFile(fsys, file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file.Path, err)
		}
		sum := calculateChecksum(body)
		if recorded, ok := applied[file.Version]; ok {
			if recorded != sum {
				return nil, fmt.Errorf("migration %s was modified after it was applied (checksum %s, recorded %s)",
					file.Version, sum, recorded)
			}
			continue
		}
		todo = append(todo, pendingMigration{file: file, body: body, checksum: sum})
	}
	return todo, nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.Checksum
	}
	return applied, nil
}

// FindMigrationFiles lists NNN_name.sql files in version order
func FindMigrationFiles(fsys fs.FS) ([]MigrationFile, error) {
	var files []MigrationFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		parts := strings.SplitN(path.Base(p), "_", 2)
		if len(parts) < 2 {
			return nil
		}
		files = append(files, MigrationFile{Version: parts[0], Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

func calculateChecksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (m *Migrator) apply(ctx context.Context, p pendingMigration) error {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(p.body)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)",
		p.file.Version, p.checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

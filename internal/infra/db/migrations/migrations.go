package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var embedded embed.FS

// Dialects maps a database driver name onto its goose dialect.
var Dialects = map[string]goose.Dialect{
	"mysql":    goose.DialectMySQL,
	"postgres": goose.DialectPostgres,
}

// Files returns the migration directory for driver.
func Files(driver string) (fs.FS, error) {
	if _, ok := Dialects[driver]; !ok {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	return fs.Sub(embedded, driver)
}

// Up applies every pending migration for driver.
func Up(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	fsys, err := Files(driver)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(Dialects[driver], db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

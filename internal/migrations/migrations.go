package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Supported SQL dialects. Each has its own migration directory.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

var gooseDialects = map[string]string{
	SQLite:   "sqlite3",
	Postgres: "postgres",
}

// Run applies all pending SQLite migrations against db.
func Run(db *sql.DB) error {
	return RunDialect(db, SQLite)
}

// RunDialect applies all pending migrations for dialect against db.
func RunDialect(db *sql.DB, dialect string) error {
	gd, ok := gooseDialects[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	dir, err := fs.Sub(files, dialect)
	if err != nil {
		return fmt.Errorf("opening %s migrations: %w", dialect, err)
	}
	goose.SetBaseFS(dir)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gd); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

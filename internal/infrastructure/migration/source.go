package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// SourceDir is where new migration files belong, relative to the module root
const SourceDir = "internal/infrastructure/migration/sql"

const sourceName = "iofs"

//go:embed sql/*.sql
var migrationFiles embed.FS

type sourceDriver = source.Driver

// Source returns the embedded migrations as a golang-migrate source
func Source() (sourceDriver, error) {
	d, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return d, nil
}

// Embedded lists the base names of the embedded migrations in version order
func Embedded() ([]string, error) {
	sub, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	return upMigrations(entries), nil
}

func upMigrations(entries []fs.DirEntry) []string {
	migrations := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			migrations = append(migrations, base)
		}
	}
	sort.Strings(migrations)
	return migrations
}

// Command migrate manages the export service's postgres schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const usage = `Usage: migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the applied version
  force <version>       Set the version without migrating (clears dirty)
  create <name> [desc]  Write a new up/down pair into -path
  list                  List the migrations embedded in this binary

The database is configured through STORE_DATABASE_* variables.

Flags:`

var errUsage = errors.New("invalid arguments")

// schemaCommand runs against a live database
type schemaCommand struct {
	minArgs int
	run     func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var schemaCommands = map[string]schemaCommand{
	"up":   {0, func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() }},
	"down": {0, func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() }},
	"step": {1, func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: step count %q", errUsage, args[0])
		}
		return m.Steps(n)
	}},
	"goto": {1, func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, args[0])
		}
		return m.GoTo(uint(v))
	}},
	"force": {1, func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, args[0])
		}
		return m.Force(v)
	}},
	"version": {0, func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
}

func main() {
	path := flag.String("path", migration.SourceDir, "directory create writes new migrations into")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := dispatch(args[0], args[1:], *path, log); err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func dispatch(command string, args []string, path string, log *zap.Logger) error {
	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("%w: create needs a name", errUsage)
		}
		var description string
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(path, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created, rebuild to embed it",
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	case "list":
		names, err := migration.Embedded()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	cmd, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	if len(args) < cmd.minArgs {
		return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, command, cmd.minArgs)
	}

	m, err := openMigrator(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return cmd.run(m, args, log)
}

// openMigrator connects using the service configuration. The returned
// Migrator owns the connection.
func openMigrator(log *zap.Logger) (*migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		return nil, errors.New("versioned migrations target postgres; sqlite is migrated by the server on startup")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

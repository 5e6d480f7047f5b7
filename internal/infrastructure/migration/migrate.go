package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"go.uber.org/zap"
)

// Migrator runs the embedded schema migrations against postgres
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New builds a Migrator on an already open connection. Close also closes
// db, since golang-migrate takes ownership of it.
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	return open(logger, func(src sourceDriver) (*migrate.Migrate, error) {
		return migrate.NewWithInstance(sourceName, src, "postgres", driver)
	})
}

// NewFromURL builds a Migrator that dials databaseURL itself
func NewFromURL(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	return open(logger, func(src sourceDriver) (*migrate.Migrate, error) {
		return migrate.NewWithSourceInstance(sourceName, src, databaseURL)
	})
}

func open(logger *zap.Logger, build func(sourceDriver) (*migrate.Migrate, error)) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := Source()
	if err != nil {
		return nil, err
	}
	m, err := build(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger.Sugar()}
	return &Migrator{migrate: m, logger: logger}, nil
}

// apply runs step, treating "nothing to do" as success, and logs the
// resulting schema version.
func (m *Migrator) apply(what string, step func() error) error {
	err := step()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info("Schema already current", zap.String("operation", what))
		return nil
	case err != nil:
		return fmt.Errorf("migration %s failed: %w", what, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Schema migrated",
		zap.String("operation", what),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up() error { return m.apply("up", m.migrate.Up) }

// Down reverts every applied migration
func (m *Migrator) Down() error { return m.apply("down", m.migrate.Down) }

// Steps moves n migrations forward, or back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %+d", n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// Version reports the applied version; an empty schema is version 0
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running anything.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

type migrateLogger struct{ *zap.SugaredLogger }

func (l migrateLogger) Printf(format string, v ...any) { l.Infof(format, v...) }

func (l migrateLogger) Verbose() bool { return l.Desugar().Core().Enabled(zap.DebugLevel) }

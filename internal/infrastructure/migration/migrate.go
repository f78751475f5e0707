// Package migration applies the PostgreSQL schema with golang-migrate.
// SQLite databases are created by GORM AutoMigrate instead.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// VersionTable records the applied schema version
const VersionTable = "catalogsync_schema_migrations"

// State is the schema version of a database. Version 0 means nothing was
// applied yet.
type State struct {
	Version uint
	Dirty   bool
}

// Migrator runs the *.sql pairs of one migration set against PostgreSQL
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// Open binds the migration set in migrations to db. Use os.DirFS for a
// directory on disk or the embedded migrations.FS.
func Open(db *sql.DB, migrations fs.FS, log *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration set: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: VersionTable})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLog{log: log}
	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	return mg.apply("up", mg.m.Up)
}

// Down reverts every applied migration
func (mg *Migrator) Down() error {
	return mg.apply("down", mg.m.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative
func (mg *Migrator) Steps(n int) error {
	return mg.apply(fmt.Sprintf("steps %+d", n), func() error { return mg.m.Steps(n) })
}

// Force records version as applied and clean without running anything.
// It repairs a dirty schema after a failed migration was fixed by hand.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// State reports the current schema version
func (mg *Migrator) State() (State, error) {
	version, dirty, err := mg.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return State{}, nil
	case err != nil:
		return State{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return State{Version: version, Dirty: dirty}, nil
}

// Close releases the source and the driver. The *sql.DB passed to Open is
// closed by the driver as well.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) apply(op string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info("Schema already current", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}
	state, err := mg.State()
	if err != nil {
		return err
	}
	mg.log.Info("Schema migrated",
		zap.String("op", op),
		zap.Uint("version", state.Version),
		zap.Bool("dirty", state.Dirty),
	)
	return nil
}

// migrateLog routes golang-migrate progress lines to zap at debug level
type migrateLog struct {
	log *zap.Logger
}

func (l migrateLog) Printf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l migrateLog) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}

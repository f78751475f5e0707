// Command migrate manages the PostgreSQL schema of the import history store.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/migration"
	"github.com/erp/catalogsync/migrations"
)

const defaultDir = "migrations"

var errUsage = errors.New("invalid arguments")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = func() { printUsage(stderr) }
	dir := fset.String("path", "", "Migrations directory instead of the embedded set")
	configPath := fset.String("config", "", "Path to a config file (default: ./config.toml when present)")
	logLevel := fset.String("log-level", "info", "Log level (debug, info, warn, error)")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() == 0 {
		printUsage(stderr)
		return 2
	}

	log, err := logger.New(logger.CLIConfig(*logLevel))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	err = execute(fset.Args(), *dir, *configPath, log, stdout)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n", err)
		printUsage(stderr)
		return 2
	default:
		log.Error("Migration command failed", zap.String("command", fset.Arg(0)), zap.Error(err))
		return 1
	}
}

func execute(args []string, dir, configPath string, log *zap.Logger, stdout io.Writer) error {
	command := args[0]

	switch command {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("%w: create needs a name", errUsage)
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		if dir == "" {
			dir = defaultDir
		}
		pair, err := migration.Scaffold(dir, args[1], description)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up", pair.UpPath), zap.String("down", pair.DownPath))
		return nil

	case "list":
		names, err := migration.List(source(dir))
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	if err := bootstrap.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("database.driver is %q: SQLite schemas are created on startup, migrations only apply to PostgreSQL", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to reach database: %w", err)
	}
	m, err := migration.Open(db, source(dir), log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		version, err := intArg(args, "force")
		if err != nil {
			return err
		}
		return m.Force(version)
	case "version":
		state, err := m.State()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "version %d", state.Version)
		if state.Dirty {
			fmt.Fprint(stdout, " (dirty)")
		}
		fmt.Fprintln(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// source returns the embedded migrations, or dir when one was given
func source(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func intArg(args []string, command string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s needs a number", errUsage, command)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", errUsage, command, args[1])
	}
	return n, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `catalogsync schema migrations (PostgreSQL)

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Revert all migrations
  step <n>              Apply n migrations, or revert -n
  version               Print the applied version
  force <version>       Mark version as applied and clean
  create <name> [desc]  Scaffold the next migration pair in -path (default ./migrations)
  list                  Print the migrations of the set

Flags:
  -path string          Migrations directory (default: the set built into the binary)
  -config string        Config file (default: ./config.toml when present)
  -log-level string     Log level: debug, info, warn, error (default: info)

The database comes from the config file or CATALOGSYNC_DATABASE_* variables.`)
}

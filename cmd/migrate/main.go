package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/commission/internal/infrastructure/config"
	"github.com/erp/commission/internal/infrastructure/logger"
	"github.com/erp/commission/internal/infrastructure/migration"
	"github.com/erp/commission/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

type flags struct {
	configPath     string
	migrationsPath string
	logLevel       string
}

// dbCommand runs against an open migrator; args excludes the command name
type dbCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var dbCommands = map[string]dbCommand{
	"up":      func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() },
	"down":    func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() },
	"step":    runStep,
	"version": runVersion,
	"force":   runForce,
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config.toml (default: ./config.toml)")
	flag.StringVar(&f.migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      f.logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := dispatch(f, args, log); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		log.Error("migrate failed", zap.String("command", args[0]), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func dispatch(f flags, args []string, log *zap.Logger) error {
	command, rest := args[0], args[1:]

	// create and list only touch the directory
	switch command {
	case "create":
		return runCreate(resolveDir(f.migrationsPath), rest, log)
	case "list":
		return runList(resolveDir(f.migrationsPath), log)
	}

	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	m, closeFn, err := openMigrator(f, log)
	if err != nil {
		return err
	}
	defer closeFn()

	return cmd(m, log, rest)
}

func openMigrator(f flags, log *zap.Logger) (*migration.Migrator, func(), error) {
	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("driver %q: versioned migrations target postgres, sqlite schemas are created by the server", cfg.Database.Driver)
	}

	dsn := cfg.Database.DSN()
	if f.migrationsPath != "" {
		m, err := migration.NewFromPath(dsn, resolveDir(f.migrationsPath), log)
		if err != nil {
			return nil, nil, fmt.Errorf("create migrator: %w", err)
		}
		return m, func() { m.Close() }, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() {
		m.Close()
		db.Close()
	}, nil
}

func runCreate(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(dir string, log *zap.Logger) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	log.Info("Available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func runStep(m *migration.Migrator, _ *zap.Logger, args []string) error {
	n, err := intArg(args, "migrate step <n>")
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func runForce(m *migration.Migrator, _ *zap.Logger, args []string) error {
	v, err := intArg(args, "migrate force <version>")
	if err != nil {
		return err
	}
	return m.Force(v)
}

func runVersion(m *migration.Migrator, log *zap.Logger, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func intArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func resolveDir(path string) string {
	if path == "" {
		path = defaultMigrationsPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func printUsage() {
	fmt.Println(`Commission schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  version               Show the applied version
  force <version>       Set the version without running migrations
  create <name> [desc]  Write a new up/down pair
  list                  List migrations in the directory

Flags:
  -config string        Path to config.toml
  -path string          Migrations directory (default: embedded set; ./migrations for create/list)
  -log-level string     debug, info, warn or error (default: info)

Database settings come from config.toml or ERP_DATABASE_* variables.

Examples:
  migrate up
  migrate step -1
  migrate create add_draft_payroll_index "Index drafts by payroll date"`)
}

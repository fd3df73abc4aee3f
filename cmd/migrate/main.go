// Command migrate applies the billing schema and scaffolds new migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

// dbCommand runs against a live database
type dbCommand struct {
	args  string
	nargs int
	run   func(m *migration.Migrator, log *zap.Logger, args []string) error
}

var dbCommands = map[string]dbCommand{
	"up":   {run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() }},
	"step": {args: "<n>", nargs: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}},
	"goto": {args: "<version>", nargs: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(v))
	}},
	"force": {args: "<version>", nargs: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"drop": {args: "-confirm", run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return errors.New("drop needs -confirm")
		}
		return m.Drop()
	}},
}

func main() {
	path := flag.String("path", "", "Read migrations from this directory instead of the embedded schema")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", TimeFormat: "2006-01-02 15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, *path, flag.Args())
	_ = logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		printUsage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, path string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name, rest := args[0], args[1:]

	switch name {
	case "create":
		return createMigration(log, dirOrDefault(path), rest)
	case "list":
		return listMigrations(log, dirOrDefault(path))
	}

	cmd, ok := dbCommands[name]
	if !ok {
		log.Error("Unknown command", zap.String("command", name))
		return errUsage
	}
	if len(rest) < cmd.nargs {
		return fmt.Errorf("%w: migrate %s %s", errUsage, name, cmd.args)
	}

	src := migration.Embedded()
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		src = migration.Dir(abs)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, src, log)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info("Running migration command", zap.String("command", name), zap.Stringer("source", src))
	return cmd.run(m, log, rest)
}

func dirOrDefault(path string) string {
	if path == "" {
		return defaultMigrationsPath
	}
	return path
}

func createMigration(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	desc := ""
	if len(args) > 1 {
		desc = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], desc)
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

func listMigrations(log *zap.Logger, dir string) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	log.Info("Available migrations", zap.String("path", dir), zap.Int("count", len(names)))
	for _, n := range names {
		fmt.Println("  -", n)
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-path dir] [-log-level level] <command> [args]

  up | down             apply or roll back everything
  step <n>              apply n migrations, negative rolls back
  goto <version>        migrate to version
  version               print the applied version
  force <version>       mark version as applied without running it
  drop -confirm         drop every table, bills and usage included
  create <name> [desc]  scaffold the next numbered up/down pair
  list                  list migration files

Without -path the schema embedded in the binary is used; create and list
default to ./migrations. Connection settings come from FAASBILL_DATABASE_*.`)
}

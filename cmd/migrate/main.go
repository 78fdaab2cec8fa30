package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/SAP-F-2025/assessment-engine/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("Failed to load config", err)
	}

	var migrationDir string
	flag.StringVar(&migrationDir, "path", cfg.MigrationsPath, "Path to migration files")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationDir), cfg.DatabaseURL)
	if err != nil {
		fatal("Migration failed to initialize", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("Up failed", err)
		}
		slog.Info("Migrated up")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("Down failed", err)
		}
		slog.Info("Migrated down")
	case "steps":
		n := intArg(args, "steps")
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal("Steps failed", err)
		}
		slog.Info("Applied steps", "steps", n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatal("Version failed", err)
		}
		slog.Info("Schema version", "version", version, "dirty", dirty)
	case "force":
		v := intArg(args, "force")
		if err := m.Force(v); err != nil {
			fatal("Force failed", err)
		}
		slog.Info("Forced version", "version", v)
	default:
		printUsage()
		os.Exit(2)
	}
}

func intArg(args []string, command string) int {
	if len(args) < 2 {
		fatal(command+" requires a number", errors.New("missing argument"))
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		fatal("Invalid number", err)
	}
	return v
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, version, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/splax/expensetracker/internal/app/storage"
	"github.com/splax/expensetracker/pkg/config"
	"github.com/splax/expensetracker/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down|version)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	log := logger.New("migrate", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	if err := config.LoadDotEnv(); err != nil {
		log.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log, *command, *timeout, *target); err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		os.Exit(1)
	}
	log.Info("migration command completed", "command", *command, "driver", cfg.DatabaseDriver)
}

func run(cfg config.APIConfig, log *slog.Logger, command string, timeout time.Duration, target int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runner, err := storage.OpenMigrator(cfg, log)
	if err != nil {
		return fmt.Errorf("configure migration runner: %w", err)
	}
	defer runner.Close()

	if err := runner.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}

	switch command {
	case "up":
		return runner.Ensure(ctx)
	case "status":
		return runner.Status(ctx)
	case "down":
		return runner.Down(ctx, target)
	case "version":
		version, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		log.Info("schema version", "version", version)
		return nil
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
}

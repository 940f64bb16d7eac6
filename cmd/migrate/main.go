package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/splax/composedeck/internal/app/migrate"
	"github.com/splax/composedeck/pkg/config"
	"github.com/splax/composedeck/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()

	command := flag.String("command", "up", "migrate command (up|status|down)")
	driver := flag.String("driver", cfg.StoreDriver, "store driver (postgres|sqlite)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dsn := cfg.DatabaseURL
	if *driver == migrate.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	runner, err := migrate.New(*driver, dsn, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	switch *command {
	case "up":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runner.Status(ctx); err != nil {
			log.Error("failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "down":
		if err := runner.Down(ctx, *target); err != nil {
			log.Error("failed to roll back migrations", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command, "driver", *driver)
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/config"
	"github.com/fkhayef/eventcheckin/internal/database"
	"github.com/fkhayef/eventcheckin/pkg/logger"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, "console", "migrator")
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	switch command := args[0]; command {
	case "up":
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
		log.Info("migrations applied")
	case "down":
		if err := database.Rollback(db); err != nil {
			log.Fatal("failed to roll back migration", zap.Error(err))
		}
		log.Info("last migration rolled back")
	case "status":
		if err := database.Status(db); err != nil {
			log.Fatal("failed to read migration status", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrator <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up      apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  down    roll back the most recent migration")
	fmt.Fprintln(os.Stderr, "  status  print the state of every migration")
}

package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	var (
		command = flag.String("command", "up", "Migration command (up, down, force)")
		source  = flag.String("source", "file://scripts/migrations", "Migration source URL")
		version = flag.Int("version", 1, "Version to force")
	)
	flag.Parse()

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "migrate")
	defer appLogger.Sync()

	pgxConfig, err := pgx.ParseConfig(config.WriterConfig().DSN())
	if err != nil {
		appLogger.Fatal("Failed to parse DSN", err)
	}
	db := stdlib.OpenDB(*pgxConfig)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		appLogger.Fatal("Failed to create migration driver", err)
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		appLogger.Fatal("Failed to create migrator", err)
	}

	switch *command {
	case "up":
		appLogger.Info("Applying migrations...", zap.String("source", *source))
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			appLogger.Fatal("Failed to apply migrations", err)
		}
		appLogger.Info("Migrations applied successfully")
	case "down":
		appLogger.Info("Reverting migrations...")
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			appLogger.Fatal("Failed to revert migrations", err)
		}
		appLogger.Info("Migrations reverted successfully")
	case "force":
		appLogger.Info("Forcing migration version...", zap.Int("version", *version))
		if err := m.Force(*version); err != nil {
			appLogger.Fatal("Failed to force migration version", err)
		}
		appLogger.Info("Migration version forced successfully")
	default:
		appLogger.Fatal("Unknown migration command", errors.New(*command))
	}
}

package main

import (
	"database/sql"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-backoffice/internal/config"
	"ms-backoffice/internal/database/migrations"
	"ms-backoffice/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: *dir})
	defer runner.Close()

	switch *direction {
	case "up":
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migration up failed: %v", err))
		}
	case "down":
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migration down failed: %v", err))
		}
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("Unknown direction %q, expected up or down", *direction))
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Failed to read schema version: %v", err))
	}
	log.Info("MIGRATE", fmt.Sprintf("✅ Migration %s complete, schema version %d (dirty=%v)", *direction, version, dirty))
}

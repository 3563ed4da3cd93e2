package main

import (
	"database/sql"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-guestlist/internal/config"
	"ms-guestlist/internal/database/migrations"
)

func main() {
	_ = godotenv.Load()

	direction := flag.String("direction", "up", "migration direction: up or down")
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	cfg := config.Load()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	opts := migrations.DefaultOptions()
	opts.MigrationsDir = *dir
	runner := migrations.NewRunner(bunDB, opts)

	switch *direction {
	case "up":
		if err := runner.Up(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := runner.Down(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")
	default:
		log.Fatalf("Unknown direction %q, use up or down", *direction)
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Printf("Could not read migration version: %v", err)
		return
	}
	log.Printf("Current version: %d (dirty=%v)", version, dirty)
}

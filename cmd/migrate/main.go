package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/Krucheverba/m2-middleware-sub001/internal/config"
	"github.com/Krucheverba/m2-middleware-sub001/internal/repository/postgres"
)

func main() {
	path := flag.String("path", "migrations", "directory containing migration files")
	flag.Parse()

	// .env is optional; env vars win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := postgres.RunMigrations(cfg.Database, *path); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations applied")
}

package main

import (
	"log"
	"os"

	"vault-betting/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Applies a SQL migration file. Usage: migrate [path], defaulting to the
// initial schema.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	path := "migrations/001_init.sql"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	log.Printf("Applying migration: %s", path)
	if err := db.Exec(string(sqlBytes)).Error; err != nil {
		log.Fatalf("Failed to apply migration: %v", err)
	}

	log.Println("Migration applied successfully")
}

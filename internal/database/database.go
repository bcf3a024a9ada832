package database

import (
	"fmt"
	"log"

	"vault-betting/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Core identity first, then the escrow accounts and ledger
	coreModels := []interface{}{
		&models.User{},
		&models.PlayerStats{},
	}

	for _, model := range coreModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	escrowModels := []interface{}{
		&models.BetAccount{},
		&models.GroupBetAccount{},
		&models.GameAccount{},
		&models.GamePlayer{},
		&models.EscrowEntry{},
	}

	for _, model := range escrowModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables for the given models
func Migrate(db *gorm.DB, logger zerolog.Logger, models ...interface{}) error {
	for _, model := range models {
		if !HasTable(db, model) {
			logger.Debug().Str("model", fmt.Sprintf("%T", model)).Msg("Creating table")
		}
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HasTable checks if a table exists
func HasTable(db *gorm.DB, model interface{}) bool {
	return db.Migrator().HasTable(model)
}

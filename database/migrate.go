package database

import (
	"dreamlog_backend/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate brings the schema up to date for every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Dream{},
		&models.ChatMessage{},
		&models.UsageCounter{},
		&models.UserSubscription{},
	)
}

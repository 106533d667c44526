package postgres

import (
	"github.com/MalcolmMc23/Alumo/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the relational schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Document{},
	)
}

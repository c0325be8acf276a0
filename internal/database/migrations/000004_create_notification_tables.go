package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/models"
)

func createNotificationTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_notification_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Notification{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("notifications")
		},
	}
}

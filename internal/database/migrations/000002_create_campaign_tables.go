package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/models"
)

func createCampaignTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaign_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Campaign{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("campaigns")
		},
	}
}

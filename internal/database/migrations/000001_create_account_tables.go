package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/models"
)

func createAccountTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_account_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{},
				&models.DonorProfile{},
				&models.InfluencerProfile{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("influencer_profiles", "donor_profiles", "users")
		},
	}
}

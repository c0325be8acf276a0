package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/models"
)

func createLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&models.Donation{},
				&models.Transaction{},
				&models.PaymentMethod{},
			); err != nil {
				return err
			}

			// At most one default payment method per user
			return tx.Exec(`
				CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_methods_one_default
				ON payment_methods (user_id) WHERE is_default
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("payment_methods", "transactions", "donations")
		},
	}
}

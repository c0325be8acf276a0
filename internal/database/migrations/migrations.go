package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// List returns all migrations in the order they must run
func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createAccountTables(),
		createCampaignTables(),
		createLedgerTables(),
		createNotificationTables(),
	}
}

// Run applies every pending migration
func Run(db *gorm.DB, log *zap.Logger) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, List())

	if err := m.Migrate(); err != nil {
		if log != nil {
			log.Error("could not migrate", zap.Error(err))
		}
		return err
	}
	if log != nil {
		log.Info("migrations ran successfully")
	}
	return nil
}

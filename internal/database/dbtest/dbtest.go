// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/database"
	"github.com/jakob/backend/internal/database/migrations"
)

// New returns a fresh, fully migrated database private to the test.
// SQLite serializes writers, so the pool is pinned to a single connection and
// concurrent units of work queue up behind each other.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migrations.Run(db, nil))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// FailCreatesOn makes every insert into table fail with err. Used to check
// that a unit of work rolls back completely when one of its writes fails.
func FailCreatesOn(t testing.TB, db *gorm.DB, table string, err error) {
	t.Helper()

	name := "dbtest:fail_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}))
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
	})
}

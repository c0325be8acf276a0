package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"

	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/database"
	"github.com/jakob/backend/internal/database/migrations"
	"github.com/jakob/backend/internal/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the most recent migration instead of migrating up")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-rollback]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.New(cfg.Log, cfg.Environment)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(postgres.Open(cfg.Database.URL), cfg.Database.LogSQL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if !*rollback {
		if err := migrations.Run(db, log); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		return
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations.List())
	if err := m.RollbackLast(); err != nil {
		log.Fatal("rollback failed", zap.Error(err))
	}
	log.Info("rolled back last migration")
}

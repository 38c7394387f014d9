package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/model"
)

// Init opens the warm-start cache database and runs migrations. The driver
// is chosen by config: sqlite for the usual single-host deployment,
// postgres when the bridge shares a database server.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := gormDB.AutoMigrate(&model.ItemState{}, &model.ThingRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return gormDB, nil
}

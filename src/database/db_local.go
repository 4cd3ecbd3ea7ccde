package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitLocalDB points MainDB at an embedded SQLite file instead of Postgres.
// Backtest runs use it to stay self-contained: same repositories, same
// schema, no database server needed. Data migrations are skipped because
// AutoMigrate creates the schema fresh, so there is nothing to backfill.
func InitLocalDB(path string) error {
	config := GetConfig()
	if path == "" {
		path = config.LocalDBPath
	}

	db, err := gorm.Open(sqlite.Open(path),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open local database %s: %w", path, err)
	}

	MainDB = db

	logrus.WithField("path", path).Info("[database] local SQLite database opened")

	if err := autoMigrate(MainDB); err != nil {
		return fmt.Errorf("failed to migrate local database: %w", err)
	}

	return nil
}

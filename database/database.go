package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradeshield/models"
)

func Initialize(databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if log.Core().Enabled(zap.DebugLevel) {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(databaseURL), &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.VendorTaxProfile{},
		&models.TaxVerification{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info("database ready", zap.String("url", databaseURL))
	return db, nil
}

package database

import (
	"fmt"

	"cargo-backend/internal/config"
	"cargo-backend/internal/logger"
	"cargo-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the configured database, migrates it and stores it in DB.
func Init(cfg *config.Config, log *zap.Logger) error {
	db, err := Open(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))
	return nil
}

// Open connects with the driver named in cfg; SQL goes through zap.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// enforce FK constraints, off by default in sqlite
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates every table the engine uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Client{},
		&models.Product{},
		&models.Supplier{},
		&models.Shipment{},
		&models.Order{},
		&models.OrderItem{},
		&models.Transaction{},
		&models.Sequence{},
		&models.User{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

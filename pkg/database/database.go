package database

import (
	"fmt"

	"trainhub/internal/model"
	"trainhub/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection with the provided configuration
func InitDB(cfg *config.Config) error {
	var err error

	logLevel := cfg.DB.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}

	// PreferSimpleProtocol prevents "prepared statement already exists" errors
	// behind connection poolers
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true,
	}

	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	return Migrate(DB)
}

// Migrate creates or updates the table structure for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.Alert{},
		&model.Course{},
		&model.CourseModule{},
		&model.VirtualUser{},
		&model.Enrollment{},
		&model.Device{},
		&model.TrainingRecord{},
		&model.OTPCode{},
	)
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

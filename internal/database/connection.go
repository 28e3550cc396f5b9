// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/assetops/license-inventory/internal/config"
	"github.com/assetops/license-inventory/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := Migrate(db); err != nil {
		return err
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// Migrate runs the auto-migrations only. The tests use it directly against
// sqlite, where the raw postgres index statements do not apply.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.License{},
		&models.Device{},
		&models.SoftwareInstallation{},
		&models.ComplianceEvent{},
		&models.Renewal{},
		&models.CostAllocation{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// License indexes
		"CREATE INDEX IF NOT EXISTS idx_licenses_product_vendor ON licenses(product_name, vendor)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_expiry ON licenses(expiry_date)",

		// Installation indexes
		"CREATE INDEX IF NOT EXISTS idx_installations_product ON software_installations(product_name)",
		"CREATE INDEX IF NOT EXISTS idx_installations_device ON software_installations(device_id)",

		// Compliance indexes
		"CREATE INDEX IF NOT EXISTS idx_compliance_open ON compliance_events(license_id, type) WHERE NOT is_resolved",
		"CREATE INDEX IF NOT EXISTS idx_compliance_detected ON compliance_events(detected_at)",

		// Renewal and allocation indexes
		"CREATE INDEX IF NOT EXISTS idx_renewals_status_due ON renewals(status, due_date DESC)",
		"CREATE INDEX IF NOT EXISTS idx_allocations_department ON cost_allocations(department_id)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_name, entity_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB, seed config.SeedConfig) error {
	log.Println("Seeding initial data...")

	var adminCount int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		if seed.AdminPassword == "" {
			log.Println("No admin user exists and SEED_ADMIN_PASSWORD is unset; skipping admin seed")
			return nil
		}

		admin := &models.User{
			Username: seed.AdminUsername,
			Email:    seed.AdminEmail,
			Role:     models.RoleAdmin,
		}

		if err := admin.SetPassword(seed.AdminPassword); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

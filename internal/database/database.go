package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tienda/core/internal/config"
	"github.com/tienda/core/internal/models"
)

// Connect opens a PostgreSQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// Migrate runs GORM auto-migration for all models and seeds the role table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.RoleModel{},
		&models.UserProfileModel{},
		&models.UserTokenModel{},
		&models.CategoryModel{},
		&models.ProductModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
	); err != nil {
		return err
	}
	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleClient} {
		role := models.RoleModel{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

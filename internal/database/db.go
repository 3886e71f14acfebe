package database

import (
	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the configured database and runs migrations. DB_DRIVER selects
// sqlite (default, local file) or postgres (connects via DATABASE_URL).
func Init(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		logrus.Fatalf("Unknown DB_DRIVER %q (expected sqlite or postgres)", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	logrus.Infof("Connected to %s database", cfg.DBDriver)

	err = db.AutoMigrate(
		&models.User{},
		&models.Contact{},
		&models.Message{},
	)
	if err != nil {
		logrus.Fatalf("Failed to run auto-migration: %v", err)
	}

	logrus.Info("Database migration completed")

	DB = db
	return db
}

package main

import (
	"log"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Copies all rows from the local SQLite file into Postgres. Run once when
// moving a dev install onto a real database server.
func main() {
	cfg := config.LoadConfig()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL must be set to the Postgres destination")
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to SQLite: %v", err)
	}
	log.Printf("Connected to SQLite at %s", cfg.DBPath)

	// 2. Connect to PostgreSQL (Destination)
	pgDB, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	if err := pgDB.AutoMigrate(&models.User{}, &models.Contact{}, &models.Message{}); err != nil {
		log.Fatalf("Failed to create destination tables: %v", err)
	}

	log.Println("Starting data migration...")

	// Migration Helper
	migrateTable := func(tableName string, source interface{}) {
		log.Printf("Migrating table: %s", tableName)

		// Read from SQLite
		if err := sqliteDB.Find(source).Error; err != nil {
			log.Printf("Error reading %s from SQLite: %v", tableName, err)
			return
		}

		// Write to Postgres inside a transaction so a failure leaves the
		// destination table untouched. IDs are preserved as-is; run
		// sync_sequences afterwards so Postgres sequences catch up.
		err := pgDB.Transaction(func(tx *gorm.DB) error {
			return tx.Create(source).Error
		})

		if err != nil {
			log.Printf("Error writing %s to Postgres: %v", tableName, err)
		} else {
			log.Printf("Successfully migrated %s", tableName)
		}
	}

	// Users first: contacts and messages reference user IDs.

	// 1. Users
	var users []models.User
	migrateTable("app_users", &users)

	// 2. Contacts
	var contacts []models.Contact
	migrateTable("contacts", &contacts)

	// 3. Messages
	var messages []models.Message
	migrateTable("messages", &messages)

	log.Println("Migration completed!")
}

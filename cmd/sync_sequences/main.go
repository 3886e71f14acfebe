package main

import (
	"log"

	"whatsapp-hub/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Resets Postgres ID sequences after a bulk import that preserved primary
// keys, so the next insert does not collide with migrated rows.
func main() {
	cfg := config.LoadConfig()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL must be set to the Postgres database")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	tables := []string{
		"app_users",
		"contacts",
		"messages",
	}

	log.Println("Syncing PostgreSQL sequences...")

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Printf("Error syncing sequence for %s: %v", table, err)
		} else {
			log.Printf("Successfully synced sequence for %s", table)
		}
	}

	log.Println("DONE!")
}

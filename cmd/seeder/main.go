package main

import (
	"flag"
	"fmt"
	"log"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/database"
	"whatsapp-hub/internal/models"

	"gorm.io/gorm"
)

// Seeds a demo account with a batch of pending contacts. Safe to run more
// than once, existing rows are left alone.
func main() {
	username := flag.String("username", "demo", "username for the seeded account")
	count := flag.Int("contacts", 10, "number of demo contacts to create")
	flag.Parse()

	cfg := config.LoadConfig()
	db := database.Init(cfg)

	log.Printf("Seeding demo data for user %q...", *username)

	err := db.Transaction(func(tx *gorm.DB) error {
		user := models.User{Username: *username}
		if err := tx.FirstOrCreate(&user, models.User{Username: *username}).Error; err != nil {
			return err
		}

		for i := 1; i <= *count; i++ {
			contact := models.Contact{
				UserID: user.ID,
				Phone:  fmt.Sprintf("55119%07d", i),
				Name:   fmt.Sprintf("Demo Contact %d", i),
				Status: "pending",
			}
			if err := tx.FirstOrCreate(&contact, models.Contact{UserID: user.ID, Phone: contact.Phone}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done!")
}

package campaign

import (
	"time"

	"gorm.io/gorm"

	"whatsapp-hub/internal/models"
)

// GormStore persists dispatch outcomes to the message log and the contact
// table.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) LogMessage(userID uint, phone, content, status string) error {
	msg := models.Message{
		UserID:  userID,
		Phone:   phone,
		Content: content,
		Status:  status,
	}
	return s.DB.Create(&msg).Error
}

func (s *GormStore) MarkContactSent(userID uint, phone string) error {
	now := time.Now()
	return s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND phone = ?", userID, phone).
		Updates(map[string]interface{}{"status": "sent", "sent_at": now}).Error
}

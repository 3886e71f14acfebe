package webhook

import (
	"gorm.io/gorm"

	"whatsapp-hub/internal/models"
)

// GormStore backs the webhook handler with the application database.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) UserIDByInstance(instance string) (uint, error) {
	var user models.User
	if err := s.DB.Select("id").Where("evolution_instance_name = ?", instance).First(&user).Error; err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (s *GormStore) UpdateConnection(userID uint, status string, connected bool) error {
	return s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"connection_status":  status,
		"whatsapp_connected": connected,
	}).Error
}

func (s *GormStore) LogIncomingMessage(userID uint, phone, content string) error {
	return s.DB.Create(&models.Message{
		UserID:  userID,
		Phone:   phone,
		Content: content,
		Status:  "received",
	}).Error
}

package campaign

import (
	"fmt"

	"gorm.io/gorm"

	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/whatsapp"
)

// GatewaySender resolves the user's Evolution instance and delivers one task
// through the gateway client. Tasks with media go through the multi-media
// path with the message as caption.
type GatewaySender struct {
	DB     *gorm.DB
	Client *whatsapp.Client
}

func (s *GatewaySender) Send(task Task) error {
	var user models.User
	if err := s.DB.First(&user, task.UserID).Error; err != nil {
		return fmt.Errorf("load user %d: %w", task.UserID, err)
	}
	return s.Client.SendWithMedia(user.EvolutionInstanceName, task.Phone, task.Message, task.Media)
}

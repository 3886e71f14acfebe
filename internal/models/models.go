package models

import (
	"time"
)

// User represents a registered account with its Evolution API connection
type User struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Username              string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	EvolutionInstanceName string    `gorm:"type:varchar(100)" json:"evolution_instance_name"`
	EvolutionAPIKey       string    `gorm:"type:varchar(255)" json:"-"`
	WhatsAppConnected     bool      `gorm:"default:false" json:"whatsapp_connected"`
	ConnectionStatus      string    `gorm:"type:varchar(50);default:'disconnected'" json:"connection_status"`
	QRCode                string    `gorm:"type:text" json:"-"`
	InstanceCreated       bool      `gorm:"default:false" json:"instance_created"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "app_users"
}

// Contact represents one recipient in a user's contact list
type Contact struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_contacts_user_phone" json:"user_id"`
	Phone     string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_contacts_user_phone" json:"phone"`
	Name      string     `gorm:"type:varchar(255)" json:"name"`
	Status    string     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Message is an append-only log row for a dispatched message
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Phone     string    `gorm:"type:varchar(50);not null" json:"phone"`
	Content   string    `gorm:"column:message;type:text" json:"message"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

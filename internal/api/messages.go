package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"whatsapp-hub/internal/campaign"
	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/whatsapp"
)

const recentMessageLimit = 5

type MessageHandler struct {
	DB     *gorm.DB
	Client *whatsapp.Client
	Store  *campaign.GormStore
	Config *config.Config
}

func NewMessageHandler(db *gorm.DB, client *whatsapp.Client, store *campaign.GormStore, cfg *config.Config) *MessageHandler {
	return &MessageHandler{DB: db, Client: client, Store: store, Config: cfg}
}

// SendMessage sends one message, with optional media, outside of any
// campaign. Successful sends land in the message log with status sent.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	phone := strings.TrimSpace(c.PostForm("phone"))
	message := strings.TrimSpace(c.PostForm("message"))

	payloads, err := readMediaFiles(c, h.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if phone == "" || (message == "" && len(payloads) == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone and message are required"})
		return
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}
	if user.EvolutionInstanceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User or instance not found"})
		return
	}

	if len(payloads) > 0 {
		err = h.Client.SendWithMedia(user.EvolutionInstanceName, phone, message, payloads)
	} else {
		err = h.Client.SendText(user.EvolutionInstanceName, phone, message)
	}
	if err != nil {
		logrus.WithError(err).WithField("phone", phone).Warn("Single send failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	content := message
	if len(payloads) > 0 {
		content = fmt.Sprintf("[Media: %d files] %s", len(payloads), message)
	}
	if err := h.Store.LogMessage(userID, phone, content, "sent"); err != nil {
		logrus.WithError(err).Error("Failed to log sent message")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully!"})
}

type recentMessageView struct {
	Contact   string `json:"contact"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// GetRecent returns the newest log entries for the dashboard activity feed.
func (h *MessageHandler) GetRecent(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(recentMessageLimit)))
	if limit < 1 {
		limit = recentMessageLimit
	}

	var messages []models.Message
	err := h.DB.Where("user_id = ?", userID).
		Order("timestamp DESC").Limit(limit).
		Find(&messages).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load messages"})
		return
	}

	views := make([]recentMessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, recentMessageView{
			Contact:   message.Phone,
			Message:   truncateMessage(message.Content, 50),
			Timestamp: message.Timestamp.Format("2006-01-02 15:04:05"),
			Status:    defaultStatus(message.Status),
		})
	}
	c.JSON(http.StatusOK, views)
}

func truncateMessage(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func defaultStatus(status string) string {
	if status == "" {
		return "sent"
	}
	return status
}

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/whatsapp"
)

type WhatsAppHandler struct {
	DB     *gorm.DB
	Client *whatsapp.Client
}

func NewWhatsAppHandler(db *gorm.DB, client *whatsapp.Client) *WhatsAppHandler {
	return &WhatsAppHandler{DB: db, Client: client}
}

func (h *WhatsAppHandler) loadUser(c *gin.Context) (*models.User, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return nil, false
	}
	return &user, true
}

// GetQRCode fetches a fresh pairing QR code for the user's instance
func (h *WhatsAppHandler) GetQRCode(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	if user.EvolutionInstanceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User or instance not found"})
		return
	}

	qr, err := h.Client.QRCode(user.EvolutionInstanceName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.DB.Model(user).Update("qr_code", qr).Error; err != nil {
		logrus.WithError(err).Warn("Failed to save QR code")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "qr_code": qr})
}

// GetConnectionStatus polls the gateway for the instance connection state
func (h *WhatsAppHandler) GetConnectionStatus(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	if user.EvolutionInstanceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User or instance not found", "connected": false})
		return
	}

	state, connected, err := h.Client.ConnectionState(user.EvolutionInstanceName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "connected": false})
		return
	}

	err = h.DB.Model(user).Updates(map[string]interface{}{
		"connection_status":  state,
		"whatsapp_connected": connected,
	}).Error
	if err != nil {
		logrus.WithError(err).Warn("Failed to save connection state")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": state, "connected": connected})
}

// CreateInstance provisions a gateway instance for the user
func (h *WhatsAppHandler) CreateInstance(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if user.InstanceCreated && user.EvolutionInstanceName != "" {
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"instance_name": user.EvolutionInstanceName,
			"message":       "Instance already exists",
		})
		return
	}

	instanceName := user.EvolutionInstanceName
	if instanceName == "" {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		instanceName = fmt.Sprintf("user%s", timestamp[len(timestamp)-6:])
	}

	apiKey, err := h.Client.CreateInstance(instanceName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	err = h.DB.Model(user).Updates(map[string]interface{}{
		"evolution_instance_name": instanceName,
		"evolution_api_key":       apiKey,
		"instance_created":        true,
		"whatsapp_connected":      false,
		"connection_status":       "disconnected",
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save instance"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"instance": instanceName,
	}).Info("Evolution instance created")

	c.JSON(http.StatusOK, gin.H{"success": true, "instance_name": instanceName})
}

// DeleteInstance removes the user's gateway instance
func (h *WhatsAppHandler) DeleteInstance(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if user.EvolutionInstanceName == "" {
		// nothing to delete
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := h.Client.DeleteInstance(user.EvolutionInstanceName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	err := h.DB.Model(user).Updates(map[string]interface{}{
		"evolution_instance_name": "",
		"evolution_api_key":       "",
		"instance_created":        false,
		"whatsapp_connected":      false,
		"connection_status":       "disconnected",
		"qr_code":                 "",
	}).Error
	if err != nil {
		logrus.WithError(err).Warn("Failed to clear instance fields")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Instance deleted"})
}

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-hub/internal/campaign"
	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/media"
	"whatsapp-hub/pkg/models"
)

// ContactSource resolves a recipient selection into the batch a campaign
// will target. Implemented by ContactStore.
type ContactSource interface {
	ForCampaign(userID uint, recipientType string, selected []string) ([]campaign.Contact, error)
}

type CampaignHandler struct {
	Engine   *campaign.Engine
	Contacts ContactSource
	Config   *config.Config
}

func NewCampaignHandler(engine *campaign.Engine, contacts ContactSource, cfg *config.Config) *CampaignHandler {
	return &CampaignHandler{Engine: engine, Contacts: contacts, Config: cfg}
}

// StartCampaign accepts a multipart form with the message template, the
// recipient selection and any media attachments, and hands the resolved
// batch to the dispatch engine.
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	message := strings.TrimSpace(c.PostForm("message"))
	recipientType := c.DefaultPostForm("recipient_type", "all")

	delay := h.Config.DefaultSendDelay
	if raw := c.PostForm("delay"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			delay = parsed
		}
	}

	payloads, err := readMediaFiles(c, h.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if message != "" {
		if problems := validateTemplate(message); len(problems) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": strings.Join(problems, "; ")})
			return
		}
	}

	selected := c.PostFormArray("selected_contacts")
	if recipientType == "selected" && len(selected) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please select at least one contact"})
		return
	}

	contacts, err := h.Contacts.ForCampaign(userID, recipientType, selected)
	if err != nil {
		logrus.WithError(err).Error("Campaign: failed to resolve recipients")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load contacts"})
		return
	}
	if len(contacts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No contacts found to send messages to"})
		return
	}

	summary, err := h.Engine.Start(userID, contacts, message, time.Duration(delay)*time.Second, payloads)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": summary})
}

// readMediaFiles converts every uploaded media_files part into a send
// payload, enforcing the configured size limits.
func readMediaFiles(c *gin.Context, cfg *config.Config) ([]models.MediaPayload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// plain form posts without files are fine
		return nil, nil
	}

	files := form.File["media_files"]
	if len(files) == 0 {
		return nil, nil
	}

	maxImage := cfg.MaxImageSizeMB * 1024 * 1024
	maxVideo := cfg.MaxVideoSizeMB * 1024 * 1024

	payloads := make([]models.MediaPayload, 0, len(files))
	for _, fileHeader := range files {
		if fileHeader.Filename == "" {
			continue
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fileHeader.Filename)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fileHeader.Filename)
		}

		payload, err := media.BuildPayload(fileHeader.Filename, data, maxImage, maxVideo)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

type stopCampaignRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *CampaignHandler) StopCampaign(c *gin.Context) {
	var req stopCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.Engine.Stop(req.UserID); err != nil {
		if errors.Is(err, campaign.ErrNoActiveCampaign) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No active campaign found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Campaign stopped"})
}

// GetProgress reports the live status snapshot the frontend polls.
func (h *CampaignHandler) GetProgress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Engine.Progress(userID))
}

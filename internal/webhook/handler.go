package webhook

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-hub/pkg/models"
)

// Store is the persistence surface the webhook needs.
type Store interface {
	UserIDByInstance(instance string) (uint, error)
	UpdateConnection(userID uint, status string, connected bool) error
	LogIncomingMessage(userID uint, phone, content string) error
}

// Notifier pushes events to connected frontend clients.
type Notifier interface {
	BroadcastToUser(userID uint, eventType string, data interface{})
}

type Handler struct {
	Store Store
	Hub   Notifier
}

func NewHandler(store Store, hub Notifier) *Handler {
	return &Handler{Store: store, Hub: hub}
}

// Receive accepts Evolution API webhook events. The gateway retries on
// non-2xx responses, so everything we cannot use is still acknowledged.
func (h *Handler) Receive(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.WithError(err).Warn("Webhook: invalid payload")
		c.Status(http.StatusBadRequest)
		return
	}

	switch strings.ToLower(event.Event) {
	case "connection.update":
		h.handleConnectionUpdate(event)
	case "messages.upsert":
		h.handleMessageUpsert(event)
	default:
		logrus.WithFields(logrus.Fields{
			"event":    event.Event,
			"instance": event.Instance,
		}).Debug("Webhook: ignoring event")
	}

	c.Status(http.StatusOK)
}

func (h *Handler) handleConnectionUpdate(event models.WebhookEvent) {
	var data models.ConnectionUpdateData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logrus.WithError(err).Warn("Webhook: bad connection.update data")
		return
	}

	userID, err := h.Store.UserIDByInstance(event.Instance)
	if err != nil {
		logrus.WithField("instance", event.Instance).Debug("Webhook: event for unknown instance")
		return
	}

	connected := data.State == "open"
	if err := h.Store.UpdateConnection(userID, data.State, connected); err != nil {
		logrus.WithError(err).Error("Webhook: failed to update connection state")
		return
	}
	logrus.WithFields(logrus.Fields{
		"instance": event.Instance,
		"state":    data.State,
	}).Info("Webhook: connection update")

	if h.Hub != nil {
		h.Hub.BroadcastToUser(userID, "connection_update", gin.H{
			"status":    data.State,
			"connected": connected,
		})
	}
}

func (h *Handler) handleMessageUpsert(event models.WebhookEvent) {
	var data models.MessageUpsertData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logrus.WithError(err).Warn("Webhook: bad messages.upsert data")
		return
	}

	// only inbound direct messages, group chat traffic is not tracked
	if data.Key.FromMe || strings.HasSuffix(data.Key.RemoteJid, "@g.us") {
		return
	}
	content := data.Message.Conversation
	if content == "" {
		return
	}
	phone := strings.SplitN(data.Key.RemoteJid, "@", 2)[0]

	userID, err := h.Store.UserIDByInstance(event.Instance)
	if err != nil {
		return
	}

	if err := h.Store.LogIncomingMessage(userID, phone, content); err != nil {
		logrus.WithError(err).Error("Webhook: failed to log incoming message")
	}
	logrus.WithFields(logrus.Fields{"phone": phone}).Info("Webhook: received message")

	if h.Hub != nil {
		h.Hub.BroadcastToUser(userID, "new_message", gin.H{
			"phone":   phone,
			"message": content,
			"name":    data.PushName,
		})
	}
}

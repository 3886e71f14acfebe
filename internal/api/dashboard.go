package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	Contacts *ContactStore
}

func NewDashboardHandler(contacts *ContactStore) *DashboardHandler {
	return &DashboardHandler{Contacts: contacts}
}

// GetStats returns the headline numbers the dashboard cards show
func (h *DashboardHandler) GetStats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.Contacts.Stats(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_contacts": stats.Total,
		"today_sent":     stats.MessagesToday,
		"total_sent":     stats.TotalMessages,
	})
}

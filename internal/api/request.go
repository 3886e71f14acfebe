package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// requireUserID pulls the acting user from the request. There is no session
// layer, callers identify themselves with an explicit user_id query or form
// field. A missing or malformed value answers the request with a 400.
func requireUserID(c *gin.Context) (uint, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		raw = c.PostForm("user_id")
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user_id is required"})
		return 0, false
	}
	return uint(id), true
}

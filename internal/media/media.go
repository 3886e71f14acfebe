package media

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"whatsapp-hub/pkg/models"
)

// allowedExtensions maps a lowercase file extension to the gateway media type.
var allowedExtensions = map[string]string{
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".webp": "image",
	".mp4":  "video",
	".avi":  "video",
	".mov":  "video",
	".wmv":  "video",
	".flv":  "video",
	".webm": "video",
}

// BuildPayload validates an uploaded file and turns it into a send-ready
// payload. Files are kept in memory only, the stored Filename is a generated
// unique name so payloads from different uploads never collide.
func BuildPayload(originalName string, data []byte, maxImageBytes, maxVideoBytes int64) (models.MediaPayload, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	mediaType, ok := allowedExtensions[ext]
	if !ok {
		return models.MediaPayload{}, fmt.Errorf("unsupported file type: %s", originalName)
	}

	limit := maxImageBytes
	if mediaType == "video" {
		limit = maxVideoBytes
	}
	if int64(len(data)) > limit {
		return models.MediaPayload{}, fmt.Errorf("%s is too large: %d bytes exceeds the %dMB %s limit",
			originalName, len(data), limit/(1024*1024), mediaType)
	}
	if len(data) == 0 {
		return models.MediaPayload{}, fmt.Errorf("%s is empty", originalName)
	}

	return models.MediaPayload{
		Filename:     uuid.New().String() + ext,
		OriginalName: originalName,
		MediaType:    mediaType,
		Base64:       base64.StdEncoding.EncodeToString(data),
		FileSize:     int64(len(data)),
	}, nil
}

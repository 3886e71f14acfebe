package models

// MediaPayload is an uploaded media file converted for the gateway: the raw
// bytes are base64 encoded and classified as image or video. Filename is a
// generated unique name, OriginalName is what the client uploaded.
type MediaPayload struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_filename"`
	MediaType    string `json:"media_type"`
	Base64       string `json:"-"`
	FileSize     int64  `json:"file_size"`
}

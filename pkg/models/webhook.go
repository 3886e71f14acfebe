package models

import "encoding/json"

// WebhookEvent is the envelope Evolution API posts to the configured webhook.
// Data is event specific and decoded lazily by the handler.
type WebhookEvent struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

// ConnectionUpdateData carries the payload of a connection.update event
type ConnectionUpdateData struct {
	State        string `json:"state"`
	StatusReason int    `json:"statusReason"`
}

// MessageUpsertData carries the payload of a messages.upsert event
type MessageUpsertData struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation string `json:"conversation"`
	} `json:"message"`
	MessageTimestamp int64 `json:"messageTimestamp"`
}

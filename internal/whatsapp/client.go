package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/pkg/models"
)

// Per-request timeouts. Media uploads carry base64 bodies and need more room.
const (
	textSendTimeout  = 30 * time.Second
	mediaSendTimeout = 60 * time.Second
	defaultTimeout   = 30 * time.Second

	// pause between files when sending multiple media to one recipient
	mediaSendPause = time.Second
)

// Client talks to an Evolution API server. Every user gets its own instance
// on that server; methods take the instance name of the acting user.
type Client struct {
	Config *config.Config
}

func NewClient(cfg *config.Config) *Client {
	return &Client{Config: cfg}
}

// --- Request Structures ---

type TextMessage struct {
	Text string `json:"text"`
}

type SendTextRequest struct {
	Number      string      `json:"number"`
	TextMessage TextMessage `json:"textMessage"`
}

type MediaMessage struct {
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption"`
}

type SendMediaRequest struct {
	Number       string       `json:"number"`
	MediaMessage MediaMessage `json:"mediaMessage"`
}

type CreateInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	Integration  string `json:"integration"`
}

// MediaSendResult reports the outcome for one file of a multi-media send
type MediaSendResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(method, url string, body interface{}, timeout time.Duration) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("apikey", c.Config.EvolutionAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return respBody, resp.StatusCode, nil
}

// stripDataURI removes a data:...;base64, prefix so the API gets plain base64
func stripDataURI(data string) string {
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			return data[i+1:]
		}
	}
	return data
}

// --- Messaging Methods ---

// SendText sends a plain text message. The API answers 201 on success.
func (c *Client) SendText(instance, phone, text string) error {
	if instance == "" {
		return fmt.Errorf("no instance configured")
	}
	if phone == "" || text == "" {
		return fmt.Errorf("phone number and message are required")
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.Config.EvolutionAPIURL, instance)
	payload := SendTextRequest{
		Number:      phone,
		TextMessage: TextMessage{Text: text},
	}

	body, status, err := c.sendRequest("POST", url, payload, textSendTimeout)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("failed to send message: HTTP %d - %s", status, string(body))
	}
	return nil
}

// SendMedia sends one image or video, optionally captioned.
func (c *Client) SendMedia(instance, phone string, file models.MediaPayload, caption string) error {
	if instance == "" {
		return fmt.Errorf("no instance configured")
	}
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}
	if file.Base64 == "" {
		return fmt.Errorf("media data is required")
	}
	if file.MediaType != "image" && file.MediaType != "video" {
		return fmt.Errorf("unsupported media type %q, use image or video", file.MediaType)
	}

	url := fmt.Sprintf("%s/message/sendMedia/%s", c.Config.EvolutionAPIURL, instance)
	payload := SendMediaRequest{
		Number: phone,
		MediaMessage: MediaMessage{
			MediaType: file.MediaType,
			Media:     stripDataURI(file.Base64),
			Caption:   caption,
		},
	}

	body, status, err := c.sendRequest("POST", url, payload, mediaSendTimeout)
	if err != nil {
		return fmt.Errorf("error sending media: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("failed to send media: HTTP %d - %s", status, string(body))
	}
	return nil
}

// SendMultipleMedia sends each file in order with the caption only on the
// first one, pausing briefly between files. The send counts as successful
// when at least one file went through; the returned results carry per-file
// outcomes for callers that want them.
func (c *Client) SendMultipleMedia(instance, phone string, files []models.MediaPayload, caption string) ([]MediaSendResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no media files provided")
	}

	results := make([]MediaSendResult, 0, len(files))
	successful := 0
	var firstErr error

	for i, file := range files {
		fileCaption := ""
		if i == 0 {
			fileCaption = caption
		}

		err := c.SendMedia(instance, phone, file, fileCaption)
		result := MediaSendResult{Filename: file.Filename, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			successful++
		}
		results = append(results, result)

		if i < len(files)-1 {
			time.Sleep(mediaSendPause)
		}
	}

	if successful == 0 {
		return results, fmt.Errorf("failed to send all %d media files: %w", len(files), firstErr)
	}
	return results, nil
}

// SendWithMedia routes a task to the media or text path depending on payload.
func (c *Client) SendWithMedia(instance, phone, message string, files []models.MediaPayload) error {
	if len(files) > 0 {
		_, err := c.SendMultipleMedia(instance, phone, files, message)
		return err
	}
	if message != "" {
		return c.SendText(instance, phone, message)
	}
	return fmt.Errorf("either message or media files are required")
}

// --- Instance Methods ---

// QRCode fetches the pairing QR for an instance as raw base64.
func (c *Client) QRCode(instance string) (string, error) {
	if instance == "" {
		return "", fmt.Errorf("no instance configured")
	}

	url := fmt.Sprintf("%s/instance/connect/%s", c.Config.EvolutionAPIURL, instance)
	body, status, err := c.sendRequest("GET", url, nil, defaultTimeout)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", status, string(body))
	}

	var result struct {
		Base64 string `json:"base64"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	return strings.TrimPrefix(result.Base64, "data:image/png;base64,"), nil
}

// ConnectionState reports the instance state; "open" means connected.
func (c *Client) ConnectionState(instance string) (string, bool, error) {
	if instance == "" {
		return "disconnected", false, fmt.Errorf("no instance configured")
	}

	url := fmt.Sprintf("%s/instance/connectionState/%s", c.Config.EvolutionAPIURL, instance)
	body, status, err := c.sendRequest("GET", url, nil, defaultTimeout)
	if err != nil {
		return "disconnected", false, err
	}
	if status != http.StatusOK {
		return "disconnected", false, fmt.Errorf("HTTP %d: %s", status, string(body))
	}

	var result struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "disconnected", false, err
	}

	state := result.Instance.State
	if state == "" {
		state = "disconnected"
	}
	return state, state == "open", nil
}

// CreateInstance provisions a Baileys instance and returns its API key.
func (c *Client) CreateInstance(name string) (string, error) {
	url := fmt.Sprintf("%s/instance/create", c.Config.EvolutionAPIURL)
	payload := CreateInstanceRequest{
		InstanceName: name,
		Integration:  "WHATSAPP-BAILEYS",
	}

	body, status, err := c.sendRequest("POST", url, payload, defaultTimeout)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("failed to create instance: HTTP %d - %s", status, string(body))
	}

	// The key lives in "hash" on newer servers, "instance.token" on older ones.
	var result struct {
		Hash     string `json:"hash"`
		Instance struct {
			Token string `json:"token"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	key := result.Hash
	if key == "" {
		key = result.Instance.Token
	}
	return key, nil
}

// DeleteInstance removes an instance; a 404 counts as already gone.
func (c *Client) DeleteInstance(instance string) error {
	if instance == "" {
		return fmt.Errorf("no instance configured")
	}

	url := fmt.Sprintf("%s/instance/delete/%s", c.Config.EvolutionAPIURL, instance)
	body, status, err := c.sendRequest("DELETE", url, nil, defaultTimeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("failed to delete instance: HTTP %d - %s", status, string(body))
	}
	return nil
}

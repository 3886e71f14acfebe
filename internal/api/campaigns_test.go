package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"whatsapp-hub/internal/campaign"
	"whatsapp-hub/internal/config"
)

type fakeContactSource struct {
	contacts []campaign.Contact
	lastType string
	selected []string
}

func (f *fakeContactSource) ForCampaign(userID uint, recipientType string, selected []string) ([]campaign.Contact, error) {
	f.lastType = recipientType
	f.selected = selected
	return f.contacts, nil
}

type recordingSender struct {
	mu    sync.Mutex
	tasks []campaign.Task
}

func (s *recordingSender) Send(task campaign.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *recordingSender) all() []campaign.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]campaign.Task(nil), s.tasks...)
}

type nopStore struct{}

func (nopStore) LogMessage(userID uint, phone, content, status string) error { return nil }
func (nopStore) MarkContactSent(userID uint, phone string) error             { return nil }

func testConfig() *config.Config {
	return &config.Config{
		DefaultSendDelay: 0,
		MaxImageSizeMB:   10,
		MaxVideoSizeMB:   50,
	}
}

func newCampaignRouter(engine *campaign.Engine, contacts ContactSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCampaignHandler(engine, contacts, testConfig())

	router := gin.New()
	router.POST("/api/campaigns/start", h.StartCampaign)
	router.POST("/api/campaigns/stop", h.StopCampaign)
	router.GET("/api/campaigns/progress", h.GetProgress)
	return router
}

// postCampaignForm posts a multipart start request. Each files entry becomes
// a media_files part named by its key.
func postCampaignForm(t *testing.T, router *gin.Engine, fields map[string]string, extra map[string][]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	for key, values := range extra {
		for _, value := range values {
			writer.WriteField(key, value)
		}
	}
	for name, data := range files {
		part, err := writer.CreateFormFile("media_files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(data)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/start", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

func getProgress(t *testing.T, router *gin.Engine, userID string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/progress?user_id="+userID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d", w.Code)
	}
	return decodeBody(t, w)
}

func TestStartCampaignRunsToCompletion(t *testing.T) {
	sender := &recordingSender{}
	engine := campaign.NewEngine(sender, nopStore{})
	engine.StartWorker(context.Background())
	defer engine.StopWorker()

	source := &fakeContactSource{contacts: []campaign.Contact{
		{Name: "Ana", Phone: "5511111111111"},
		{Name: "Bruno", Phone: "5522222222222"},
	}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router, map[string]string{
		"user_id": "1",
		"message": "Hello {name}",
		"delay":   "0",
	}, nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "Campaign started! 2 messages") {
		t.Fatalf("unexpected summary %q", msg)
	}
	if source.lastType != "all" {
		t.Fatalf("recipient type should default to all, got %q", source.lastType)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		progress := getProgress(t, router, "1")
		if progress["status"] == "completed" {
			if progress["total"] != float64(2) || progress["sent"] != float64(2) {
				t.Fatalf("unexpected final progress %v", progress)
			}
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatalf("campaign never completed, last progress %v", progress)
		}
		time.Sleep(5 * time.Millisecond)
	}

	tasks := sender.all()
	if len(tasks) != 2 || tasks[0].Message != "Hello Ana" {
		t.Fatalf("unexpected dispatched tasks %+v", tasks)
	}
}

func TestStartCampaignWithMedia(t *testing.T) {
	sender := &recordingSender{}
	engine := campaign.NewEngine(sender, nopStore{})
	engine.StartWorker(context.Background())
	defer engine.StopWorker()

	source := &fakeContactSource{contacts: []campaign.Contact{{Name: "Ana", Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router,
		map[string]string{"user_id": "1", "message": "look at this"},
		nil,
		map[string][]byte{"pic.png": []byte("fake image bytes")})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if msg, _ := body["message"].(string); !strings.Contains(msg, "with 1 media files") {
		t.Fatalf("unexpected summary %q", msg)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(sender.all()) == 0 {
		if !time.Now().Before(deadline) {
			t.Fatal("task never dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	task := sender.all()[0]
	if len(task.Media) != 1 || task.Media[0].MediaType != "image" {
		t.Fatalf("media payload not carried on the task: %+v", task.Media)
	}
}

func TestStartCampaignRejectsUnsupportedMedia(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	source := &fakeContactSource{contacts: []campaign.Contact{{Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router,
		map[string]string{"user_id": "1", "message": "hi"},
		nil,
		map[string][]byte{"doc.pdf": []byte("%PDF")})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartCampaignNoContacts(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	router := newCampaignRouter(engine, &fakeContactSource{})

	w := postCampaignForm(t, router, map[string]string{"user_id": "1", "message": "hi"}, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "No contacts found to send messages to" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestStartCampaignRequiresMessageOrMedia(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	source := &fakeContactSource{contacts: []campaign.Contact{{Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router, map[string]string{"user_id": "1"}, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "either message or media files are required" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestStartCampaignSelectedNeedsSelection(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	source := &fakeContactSource{contacts: []campaign.Contact{{Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router, map[string]string{
		"user_id":        "1",
		"message":        "hi",
		"recipient_type": "selected",
	}, nil, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "Please select at least one contact" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestStartCampaignPassesSelection(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	engine.StartWorker(context.Background())
	defer engine.StopWorker()

	source := &fakeContactSource{contacts: []campaign.Contact{{Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router,
		map[string]string{"user_id": "1", "message": "hi", "recipient_type": "selected"},
		map[string][]string{"selected_contacts": {"5511111111111", "5522222222222"}},
		nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if source.lastType != "selected" || len(source.selected) != 2 {
		t.Fatalf("selection not forwarded: type=%q selected=%v", source.lastType, source.selected)
	}
}

func TestStartCampaignRejectsBadPlaceholders(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	source := &fakeContactSource{contacts: []campaign.Contact{{Phone: "5511111111111"}}}
	router := newCampaignRouter(engine, source)

	w := postCampaignForm(t, router, map[string]string{
		"user_id": "1",
		"message": "Hi {nickname}",
	}, nil, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if err, _ := body["error"].(string); !strings.Contains(err, "Invalid placeholders: {nickname}") {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestStopCampaign(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	engine.StartWorker(context.Background())
	defer engine.StopWorker()

	source := &fakeContactSource{contacts: []campaign.Contact{
		{Phone: "5511111111111"}, {Phone: "5522222222222"}, {Phone: "5533333333333"},
	}}
	router := newCampaignRouter(engine, source)

	// a long delay keeps the campaign running while we stop it
	w := postCampaignForm(t, router, map[string]string{
		"user_id": "1",
		"message": "hi",
		"delay":   "60",
	}, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/stop", strings.NewReader(`{"user_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Campaign stopped" {
		t.Fatalf("unexpected stop response %v", body)
	}

	progress := getProgress(t, router, "1")
	if progress["status"] != "stopped" {
		t.Fatalf("expected stopped, got %v", progress["status"])
	}
}

func TestStopCampaignWithoutActive(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	router := newCampaignRouter(engine, &fakeContactSource{})

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/stop", strings.NewReader(`{"user_id":9}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "No active campaign found" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestProgressForIdleUser(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	router := newCampaignRouter(engine, &fakeContactSource{})

	progress := getProgress(t, router, "77")
	if progress["status"] != "none" || progress["total"] != float64(0) || progress["eta"] != float64(0) {
		t.Fatalf("unexpected idle progress %v", progress)
	}
}

func TestStartCampaignRequiresUserID(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	router := newCampaignRouter(engine, &fakeContactSource{})

	w := postCampaignForm(t, router, map[string]string{"message": "hi"}, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartCampaignRejectsHugeUserID(t *testing.T) {
	engine := campaign.NewEngine(&recordingSender{}, nopStore{})
	router := newCampaignRouter(engine, &fakeContactSource{})

	// 2^32 does not fit a 32-bit uint; it must fail at the parse rather
	// than truncate to another tenant's id
	w := postCampaignForm(t, router, map[string]string{"user_id": "4294967296", "message": "hi"}, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "user_id is required" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

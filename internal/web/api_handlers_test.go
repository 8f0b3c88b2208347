package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
	"github.com/asesson/job-Application-Tracker/internal/config"
	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
	"github.com/asesson/job-Application-Tracker/internal/sync"
)

// testHandlers holds test dependencies.
type testHandlers struct {
	db       *db.DB
	handlers *Handlers
	cleanup  func()
}

// setupTestHandlers creates handlers with a test database.
func setupTestHandlers(t *testing.T) *testHandlers {
	t.Helper()

	// Create a temp directory for the test database
	tempDir, err := os.MkdirTemp("", "jobtracker-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create test database: %v", err)
	}

	cfg := &config.Config{}
	cfg.Sync.MinInterval = 15
	cfg.Sync.MaxInterval = 1440

	tokens := google.NewTokenStore(database, "client-id", "client-secret", "http://localhost:8080/api/google/callback")

	handlers := &Handlers{
		cfg:    cfg,
		db:     database,
		tokens: tokens,
		engine: sync.NewEngine(database, nil),
	}

	cleanup := func() {
		database.Close()
		os.RemoveAll(tempDir)
	}

	return &testHandlers{
		db:       database,
		handlers: handlers,
		cleanup:  cleanup,
	}
}

// setAuthContext sets the authenticated user context for testing.
func setAuthContext(c *gin.Context, userID, email string) {
	session := &auth.SessionData{
		UserID:    userID,
		Email:     email,
		Name:      "Test User",
		CSRFToken: "test-csrf-token",
	}
	c.Set(auth.ContextKeySession, session)
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createUser(t *testing.T, database *db.DB, email string) string {
	t.Helper()

	user, err := database.GetOrCreateUser(email, "Test User")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

func createApplication(t *testing.T, database *db.DB, userID string) *db.Application {
	t.Helper()

	app := &db.Application{
		UserID:          userID,
		CompanyName:     "Acme",
		JobTitle:        "Engineer",
		Status:          db.StatusApplied,
		ApplicationDate: time.Now().UTC(),
	}
	if err := database.CreateApplication(app); err != nil {
		t.Fatalf("failed to create application: %v", err)
	}
	return app
}

func TestAPICreateApplication(t *testing.T) {
	t.Run("creates application with defaults", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/applications",
			`{"company_name": "Globex", "job_title": "SRE"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APICreateApplication(c)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var created db.Application
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.Status != db.StatusApplied {
			t.Errorf("expected default status applied, got %s", created.Status)
		}
		if created.UserID != userID {
			t.Errorf("application attributed to wrong user: %s", created.UserID)
		}
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/applications", `{"company_name": "Globex"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APICreateApplication(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/applications",
			`{"company_name": "Globex", "job_title": "SRE", "status": "bogus"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APICreateApplication(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}

func TestAPIGetApplication(t *testing.T) {
	t.Run("denies access to another user's application", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		ownerID := createUser(t, th.db, "owner@example.com")
		app := createApplication(t, th.db, ownerID)
		intruderID := createUser(t, th.db, "intruder@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/applications/"+app.ID, nil)
		c.Params = gin.Params{{Key: "id", Value: app.ID}}
		setAuthContext(c, intruderID, "intruder@example.com")

		th.handlers.APIGetApplication(c)

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/applications/missing", nil)
		c.Params = gin.Params{{Key: "id", Value: "missing"}}
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIGetApplication(c)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})
}

func TestAPICreateInterview(t *testing.T) {
	t.Run("rejects interview under another user's application", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		ownerID := createUser(t, th.db, "owner@example.com")
		app := createApplication(t, th.db, ownerID)
		intruderID := createUser(t, th.db, "intruder@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/interviews",
			`{"application_id": "`+app.ID+`", "interview_type": "video_call", "scheduled_at": "2026-09-01T10:00:00Z"}`)
		setAuthContext(c, intruderID, "intruder@example.com")

		th.handlers.APICreateInterview(c)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("creates interview for own application", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")
		app := createApplication(t, th.db, userID)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/interviews",
			`{"application_id": "`+app.ID+`", "interview_type": "technical", "scheduled_at": "2026-09-01T10:00:00Z"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APICreateInterview(c)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var created db.Interview
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if created.DurationMinutes != 60 {
			t.Errorf("expected default duration 60, got %d", created.DurationMinutes)
		}
	})
}

func TestAPICreateCalendarEvent(t *testing.T) {
	t.Run("rejects end before start", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/events",
			`{"title": "Backwards", "start_time": "2026-09-01T12:00:00Z", "end_time": "2026-09-01T11:00:00Z"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APICreateCalendarEvent(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}

func TestAPIListCalendarEvents(t *testing.T) {
	t.Run("feed includes derived and stored events", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")
		app := createApplication(t, th.db, userID)

		deadline := time.Now().UTC().Add(96 * time.Hour)
		app.Deadline = &deadline
		if err := th.db.UpdateApplication(app); err != nil {
			t.Fatalf("failed to set deadline: %v", err)
		}

		ev := &db.CalendarEvent{
			UserID:    userID,
			Title:     "Meetup",
			StartTime: time.Now().UTC().Add(24 * time.Hour),
			EndTime:   time.Now().UTC().Add(25 * time.Hour),
			EventType: "custom",
		}
		if err := th.db.CreateCalendarEvent(ev); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/events", nil)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIListCalendarEvents(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var feed []map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &feed); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		categories := make(map[string]bool)
		for _, entry := range feed {
			categories[entry["category"].(string)] = true
		}
		// deadline + application submission derived, plus the stored custom event
		for _, want := range []string{"deadline", "application", "custom"} {
			if !categories[want] {
				t.Errorf("feed missing %s event: %v", want, categories)
			}
		}
	})
}

func TestAPIDashboardStats(t *testing.T) {
	th := setupTestHandlers(t)
	defer th.cleanup()

	userID := createUser(t, th.db, "test@example.com")

	active := createApplication(t, th.db, userID)
	rejected := createApplication(t, th.db, userID)
	rejected.Status = db.StatusRejected
	if err := th.db.UpdateApplication(rejected); err != nil {
		t.Fatalf("failed to update application: %v", err)
	}

	iv := &db.Interview{
		UserID:        userID,
		ApplicationID: active.ID,
		InterviewType: db.InterviewVideoCall,
		ScheduledAt:   time.Now().UTC().Add(48 * time.Hour),
	}
	if err := th.db.CreateInterview(iv); err != nil {
		t.Fatalf("failed to create interview: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	setAuthContext(c, userID, "test@example.com")

	th.handlers.APIDashboardStats(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if stats["total_applications"].(float64) != 2 {
		t.Errorf("expected 2 total applications, got %v", stats["total_applications"])
	}
	if stats["active_applications"].(float64) != 1 {
		t.Errorf("expected 1 active application, got %v", stats["active_applications"])
	}
	if stats["upcoming_interviews"].(float64) != 1 {
		t.Errorf("expected 1 upcoming interview, got %v", stats["upcoming_interviews"])
	}
}

func TestAPIGoogleStatus(t *testing.T) {
	t.Run("reports disconnected without credential", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/google/status", nil)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIGoogleStatus(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if response["connected"].(bool) {
			t.Error("expected connected=false")
		}
	})

	t.Run("reports connected with settings", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")
		storeTestCredential(t, th.db, userID)
		storeTestSettings(t, th.db, userID, true)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/google/status", nil)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIGoogleStatus(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !response["connected"].(bool) {
			t.Error("expected connected=true")
		}
		if response["settings"] == nil {
			t.Error("expected settings in response")
		}
	})
}

func TestAPIUpdateSyncSettings(t *testing.T) {
	t.Run("requires existing settings", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPatch, "/api/google/settings", `{"sync_interviews": false}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIUpdateSyncSettings(c)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("patches only the provided fields", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")
		storeTestSettings(t, th.db, userID, true)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPatch, "/api/google/settings", `{"sync_interviews": false}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIUpdateSyncSettings(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		settings, err := th.db.GetSyncSettings(userID)
		if err != nil {
			t.Fatalf("failed to get settings: %v", err)
		}
		if settings.SyncInterviews {
			t.Error("sync_interviews should be disabled")
		}
		if !settings.SyncDeadlines {
			t.Error("untouched fields should be preserved")
		}
	})

	t.Run("clamps the auto-sync interval", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")
		storeTestSettings(t, th.db, userID, true)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPatch, "/api/google/settings", `{"auto_sync_interval": 5}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIUpdateSyncSettings(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		settings, err := th.db.GetSyncSettings(userID)
		if err != nil {
			t.Fatalf("failed to get settings: %v", err)
		}
		if settings.AutoSyncInterval != 15 {
			t.Errorf("expected interval clamped to 15, got %d", settings.AutoSyncInterval)
		}
	})
}

func TestAPIGoogleDisconnect(t *testing.T) {
	th := setupTestHandlers(t)
	defer th.cleanup()

	userID := createUser(t, th.db, "test@example.com")
	storeTestCredential(t, th.db, userID)
	storeTestSettings(t, th.db, userID, true)

	mapping := &db.EventMapping{
		UserID:              userID,
		AppEventType:        "interview",
		AppEventReferenceID: "iv-1",
		GoogleCalendarID:    "primary",
		GoogleEventID:       "g-1",
	}
	if err := th.db.UpsertEventMapping(mapping); err != nil {
		t.Fatalf("failed to create mapping: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/google/disconnect", nil)
	setAuthContext(c, userID, "test@example.com")

	th.handlers.APIGoogleDisconnect(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["mappings_removed"].(float64) != 1 {
		t.Errorf("expected 1 mapping removed, got %v", response["mappings_removed"])
	}

	connected, err := th.handlers.tokens.IsConnected(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to check connection: %v", err)
	}
	if connected {
		t.Error("credential should be removed")
	}

	settings, err := th.db.GetSyncSettings(userID)
	if err != nil {
		t.Fatalf("settings should survive disconnect: %v", err)
	}
	if settings.SyncEnabled {
		t.Error("sync should be disabled after disconnect")
	}
}

func TestAPIGoogleSync(t *testing.T) {
	t.Run("rejects invalid direction", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/google/sync", `{"direction": "sideways"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIGoogleSync(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("reports sync not enabled", func(t *testing.T) {
		th := setupTestHandlers(t)
		defer th.cleanup()

		userID := createUser(t, th.db, "test@example.com")

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/google/sync", `{"direction": "app_to_google"}`)
		setAuthContext(c, userID, "test@example.com")

		th.handlers.APIGoogleSync(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var result map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if result["message"] != "Sync not enabled" {
			t.Errorf("unexpected message: %v", result["message"])
		}
	})
}

func TestAPISyncHistory(t *testing.T) {
	th := setupTestHandlers(t)
	defer th.cleanup()

	userID := createUser(t, th.db, "test@example.com")

	for i := 0; i < 3; i++ {
		entry := &db.SyncLog{
			UserID:    userID,
			SyncType:  "manual",
			Direction: db.DirectionBidirectional,
			Status:    "success",
		}
		if err := th.db.CreateSyncLog(entry); err != nil {
			t.Fatalf("failed to create sync log: %v", err)
		}
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/dashboard/sync-history?limit=2", nil)
	setAuthContext(c, userID, "test@example.com")

	th.handlers.APISyncHistory(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var logs []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 logs, got %d", len(logs))
	}
}

func storeTestCredential(t *testing.T, database *db.DB, userID string) {
	t.Helper()

	err := database.UpsertGoogleCredential(&db.GoogleCredential{
		UserID:       userID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to store credential: %v", err)
	}
}

func storeTestSettings(t *testing.T, database *db.DB, userID string, enabled bool) {
	t.Helper()

	err := database.UpsertSyncSettings(&db.SyncSettings{
		UserID:           userID,
		GoogleCalendarID: "primary",
		SyncEnabled:      enabled,
		SyncInterviews:   true,
		SyncDeadlines:    true,
		SyncFollowUps:    true,
		SyncCustomEvents: true,
	})
	if err != nil {
		t.Fatalf("failed to store settings: %v", err)
	}
}

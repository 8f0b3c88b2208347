package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/asesson/job-Application-Tracker/internal/db"
)

func setupTokenStore(t *testing.T) (*TokenStore, *db.DB, string, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "jobtracker-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	database, err := db.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create test database: %v", err)
	}

	user, err := database.GetOrCreateUser("google@example.com", "Google Tester")
	if err != nil {
		database.Close()
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create test user: %v", err)
	}

	store := NewTokenStore(database, "client-id", "client-secret", "http://localhost:8080/api/google/callback")

	cleanup := func() {
		database.Close()
		os.RemoveAll(tempDir)
	}

	return store, database, user.ID, cleanup
}

// fakeTokenEndpoint stands in for Google's token endpoint and counts
// refresh grants.
func fakeTokenEndpoint(t *testing.T, refreshes *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.FormValue("grant_type") == "refresh_token" {
			atomic.AddInt32(refreshes, 1)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "refreshed-access",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))
	}))
}

func storeCredential(t *testing.T, database *db.DB, userID string, expiry time.Time) {
	t.Helper()

	err := database.UpsertGoogleCredential(&db.GoogleCredential{
		UserID:       userID,
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		TokenExpiry:  expiry,
	})
	if err != nil {
		t.Fatalf("failed to store credential: %v", err)
	}
}

func TestAuthCodeURL(t *testing.T) {
	store, _, _, cleanup := setupTokenStore(t)
	defer cleanup()

	url := store.AuthCodeURL("state-123")

	for _, want := range []string{"state=state-123", "access_type=offline", "prompt=consent", "calendar"} {
		if !strings.Contains(url, want) {
			t.Errorf("auth URL missing %q: %s", want, url)
		}
	}
}

func TestGetValid(t *testing.T) {
	t.Run("no credential means not connected", func(t *testing.T) {
		store, _, _, cleanup := setupTokenStore(t)
		defer cleanup()

		_, err := store.GetValid(context.Background(), "nobody")
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("fresh token is returned without a refresh", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		var refreshes int32
		server := fakeTokenEndpoint(t, &refreshes)
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		storeCredential(t, database, userID, time.Now().UTC().Add(10*time.Minute))

		token, err := store.GetValid(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if token.AccessToken != "stored-access" {
			t.Errorf("expected stored token, got %s", token.AccessToken)
		}
		if n := atomic.LoadInt32(&refreshes); n != 0 {
			t.Errorf("expected 0 refreshes, got %d", n)
		}
	})

	t.Run("near-expiry token triggers exactly one refresh", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		var refreshes int32
		server := fakeTokenEndpoint(t, &refreshes)
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		storeCredential(t, database, userID, time.Now().UTC().Add(4*time.Minute))

		token, err := store.GetValid(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if token.AccessToken != "refreshed-access" {
			t.Errorf("expected refreshed token, got %s", token.AccessToken)
		}
		if n := atomic.LoadInt32(&refreshes); n != 1 {
			t.Errorf("expected 1 refresh, got %d", n)
		}

		// The refresh was persisted; the next read must not refresh again.
		token, err = store.GetValid(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to get token after refresh: %v", err)
		}
		if token.AccessToken != "refreshed-access" {
			t.Errorf("expected persisted refreshed token, got %s", token.AccessToken)
		}
		if n := atomic.LoadInt32(&refreshes); n != 1 {
			t.Errorf("expected refresh to be persisted, got %d refreshes", n)
		}
	})

	t.Run("refresh token is carried forward when not rotated", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		var refreshes int32
		server := fakeTokenEndpoint(t, &refreshes)
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		storeCredential(t, database, userID, time.Now().UTC().Add(-time.Minute))

		if _, err := store.GetValid(context.Background(), userID); err != nil {
			t.Fatalf("failed to refresh: %v", err)
		}

		cred, err := database.GetGoogleCredential(userID)
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if cred.RefreshToken != "stored-refresh" {
			t.Errorf("refresh token should survive rotation-free refresh, got %s", cred.RefreshToken)
		}
	})

	t.Run("rejected refresh maps to invalid grant", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
		}))
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		storeCredential(t, database, userID, time.Now().UTC().Add(-time.Minute))

		_, err := store.GetValid(context.Background(), userID)
		if !errors.Is(err, ErrInvalidGrant) {
			t.Errorf("expected ErrInvalidGrant, got %v", err)
		}
	})
}

func TestExchange(t *testing.T) {
	t.Run("response without refresh token is rejected", func(t *testing.T) {
		store, _, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"access_token": "access-only",
				"token_type": "Bearer",
				"expires_in": 3600
			}`))
		}))
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		err := store.Exchange(context.Background(), userID, "auth-code")
		if !errors.Is(err, db.ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}

		connected, err := store.IsConnected(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to check connection: %v", err)
		}
		if connected {
			t.Error("rejected exchange must not leave a credential behind")
		}
	})

	t.Run("complete response is persisted", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"access_token": "new-access",
				"refresh_token": "new-refresh",
				"token_type": "Bearer",
				"expires_in": 3600
			}`))
		}))
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		if err := store.Exchange(context.Background(), userID, "auth-code"); err != nil {
			t.Fatalf("exchange failed: %v", err)
		}

		cred, err := database.GetGoogleCredential(userID)
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if cred.RefreshToken != "new-refresh" {
			t.Errorf("expected new-refresh, got %s", cred.RefreshToken)
		}
	})
}

func TestRemove(t *testing.T) {
	store, database, userID, cleanup := setupTokenStore(t)
	defer cleanup()

	storeCredential(t, database, userID, time.Now().UTC().Add(time.Hour))

	if err := store.Remove(userID); err != nil {
		t.Fatalf("failed to remove credential: %v", err)
	}
	if err := store.Remove(userID); err != nil {
		t.Fatalf("second remove should succeed: %v", err)
	}

	connected, err := store.IsConnected(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to check connection: %v", err)
	}
	if connected {
		t.Error("expected disconnected after remove")
	}
}

func TestIsConnected(t *testing.T) {
	t.Run("fresh credential counts as connected", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		storeCredential(t, database, userID, time.Now().UTC().Add(time.Hour))

		connected, err := store.IsConnected(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to check connection: %v", err)
		}
		if !connected {
			t.Error("expected connected with a fresh credential")
		}
	})

	t.Run("revoked refresh token counts as disconnected", func(t *testing.T) {
		store, database, userID, cleanup := setupTokenStore(t)
		defer cleanup()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
		}))
		defer server.Close()
		store.config.Endpoint = oauth2.Endpoint{TokenURL: server.URL}

		// Expired access token forces a refresh attempt, which Google
		// rejects because the refresh token was revoked.
		storeCredential(t, database, userID, time.Now().UTC().Add(-time.Hour))

		connected, err := store.IsConnected(context.Background(), userID)
		if err != nil {
			t.Fatalf("failed to check connection: %v", err)
		}
		if connected {
			t.Error("revoked refresh token must not count as connected")
		}
	})
}

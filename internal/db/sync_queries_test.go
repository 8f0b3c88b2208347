package db

import (
	"errors"
	"testing"
	"time"
)

func TestGoogleCredentialQueries(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "test@example.com")

	t.Run("rejects credential without refresh token", func(t *testing.T) {
		err := db.UpsertGoogleCredential(&GoogleCredential{
			UserID:      userID,
			AccessToken: "access",
			TokenExpiry: time.Now().UTC().Add(time.Hour),
		})
		if !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}
	})

	t.Run("stores and retrieves credential", func(t *testing.T) {
		cred := &GoogleCredential{
			UserID:       userID,
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenExpiry:  time.Now().UTC().Add(time.Hour),
			Scope:        "calendar calendar.events",
		}
		if err := db.UpsertGoogleCredential(cred); err != nil {
			t.Fatalf("failed to store credential: %v", err)
		}

		got, err := db.GetGoogleCredential(userID)
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if got.RefreshToken != "refresh-1" {
			t.Errorf("expected refresh-1, got %s", got.RefreshToken)
		}
	})

	t.Run("upsert replaces the token pair", func(t *testing.T) {
		cred := &GoogleCredential{
			UserID:       userID,
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			TokenExpiry:  time.Now().UTC().Add(2 * time.Hour),
		}
		if err := db.UpsertGoogleCredential(cred); err != nil {
			t.Fatalf("failed to upsert credential: %v", err)
		}

		got, err := db.GetGoogleCredential(userID)
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
			t.Errorf("expected replaced token pair, got %s/%s", got.AccessToken, got.RefreshToken)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := db.DeleteGoogleCredential(userID); err != nil {
			t.Fatalf("failed to delete credential: %v", err)
		}
		if err := db.DeleteGoogleCredential(userID); err != nil {
			t.Fatalf("second delete should succeed: %v", err)
		}

		_, err := db.GetGoogleCredential(userID)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestSyncSettingsQueries(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "test@example.com")

	t.Run("active settings require sync_enabled", func(t *testing.T) {
		settings := &SyncSettings{
			UserID:           userID,
			GoogleCalendarID: "primary",
			SyncEnabled:      false,
			SyncInterviews:   true,
		}
		if err := db.UpsertSyncSettings(settings); err != nil {
			t.Fatalf("failed to store settings: %v", err)
		}

		_, err := db.GetActiveSyncSettings(userID)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound while disabled, got %v", err)
		}

		if err := db.SetSyncEnabled(userID, true); err != nil {
			t.Fatalf("failed to enable sync: %v", err)
		}

		active, err := db.GetActiveSyncSettings(userID)
		if err != nil {
			t.Fatalf("failed to get active settings: %v", err)
		}
		if !active.SyncInterviews {
			t.Error("expected sync_interviews to be preserved")
		}
	})

	t.Run("upsert applies interval default", func(t *testing.T) {
		settings, err := db.GetSyncSettings(userID)
		if err != nil {
			t.Fatalf("failed to get settings: %v", err)
		}
		if settings.AutoSyncInterval != 60 {
			t.Errorf("expected default interval 60, got %d", settings.AutoSyncInterval)
		}
	})

	t.Run("touch last sync", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Second)
		if err := db.TouchLastSyncAt(userID, at); err != nil {
			t.Fatalf("failed to touch last sync: %v", err)
		}

		settings, err := db.GetSyncSettings(userID)
		if err != nil {
			t.Fatalf("failed to get settings: %v", err)
		}
		if settings.LastSyncAt == nil || !settings.LastSyncAt.Equal(at) {
			t.Errorf("expected last_sync_at %v, got %v", at, settings.LastSyncAt)
		}
	})

	t.Run("set enabled on missing user", func(t *testing.T) {
		err := db.SetSyncEnabled("no-such-user", true)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEventMappingQueries(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "test@example.com")

	t.Run("internal mapping upsert is idempotent on reference", func(t *testing.T) {
		first := &EventMapping{
			UserID:              userID,
			AppEventType:        "interview",
			AppEventReferenceID: "iv-1",
			GoogleCalendarID:    "primary",
			GoogleEventID:       "g-1",
			SyncStatus:          SyncStatusSynced,
		}
		if err := db.UpsertEventMapping(first); err != nil {
			t.Fatalf("failed to create mapping: %v", err)
		}

		second := &EventMapping{
			UserID:              userID,
			AppEventType:        "interview",
			AppEventReferenceID: "iv-1",
			GoogleCalendarID:    "primary",
			GoogleEventID:       "g-1-updated",
			SyncStatus:          SyncStatusSynced,
		}
		if err := db.UpsertEventMapping(second); err != nil {
			t.Fatalf("failed to upsert mapping: %v", err)
		}

		mappings, err := db.GetMappingsByUserID(userID)
		if err != nil {
			t.Fatalf("failed to list mappings: %v", err)
		}
		if len(mappings) != 1 {
			t.Fatalf("expected 1 mapping after upsert, got %d", len(mappings))
		}
		if mappings[0].GoogleEventID != "g-1-updated" {
			t.Errorf("expected g-1-updated, got %s", mappings[0].GoogleEventID)
		}
	})

	t.Run("google-origin mapping keyed by google event id", func(t *testing.T) {
		eventID := "local-ev-1"
		m := &EventMapping{
			UserID:              userID,
			AppEventType:        "custom",
			AppEventReferenceID: "remote-1",
			AppEventID:          &eventID,
			GoogleCalendarID:    "primary",
			GoogleEventID:       "remote-1",
			Origin:              OriginGoogle,
			SyncStatus:          SyncStatusSynced,
		}
		if err := db.UpsertEventMapping(m); err != nil {
			t.Fatalf("failed to create google-origin mapping: %v", err)
		}

		got, err := db.GetMappingByGoogleEvent(userID, "remote-1")
		if err != nil {
			t.Fatalf("failed to get mapping by google event: %v", err)
		}
		if got.Origin != OriginGoogle {
			t.Errorf("expected origin google, got %s", got.Origin)
		}
		if got.AppEventID == nil || *got.AppEventID != "local-ev-1" {
			t.Errorf("expected app event id local-ev-1, got %v", got.AppEventID)
		}
	})

	t.Run("lookup by reference", func(t *testing.T) {
		got, err := db.GetMappingByReference(userID, "interview", "iv-1")
		if err != nil {
			t.Fatalf("failed to get mapping by reference: %v", err)
		}
		if got.AppEventReferenceID != "iv-1" {
			t.Errorf("expected iv-1, got %s", got.AppEventReferenceID)
		}

		_, err = db.GetMappingByReference(userID, "interview", "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown reference, got %v", err)
		}
	})

	t.Run("update sync state rewrites remote calendar and event ids", func(t *testing.T) {
		m, err := db.GetMappingByReference(userID, "interview", "iv-1")
		if err != nil {
			t.Fatalf("failed to get mapping: %v", err)
		}

		syncedAt := time.Now().UTC().Truncate(time.Second)
		if err := db.UpdateMappingSyncState(m.ID, "work-calendar", "g-replacement", SyncStatusSynced, "etag-2", syncedAt); err != nil {
			t.Fatalf("failed to update sync state: %v", err)
		}

		got, err := db.GetMappingByReference(userID, "interview", "iv-1")
		if err != nil {
			t.Fatalf("failed to get mapping after update: %v", err)
		}
		if got.GoogleCalendarID != "work-calendar" {
			t.Errorf("expected work-calendar, got %s", got.GoogleCalendarID)
		}
		if got.GoogleEventID != "g-replacement" {
			t.Errorf("expected g-replacement, got %s", got.GoogleEventID)
		}
		if got.ETag != "etag-2" {
			t.Errorf("expected etag-2, got %s", got.ETag)
		}
	})

	t.Run("delete all mappings for user", func(t *testing.T) {
		count, err := db.DeleteMappingsForUser(userID)
		if err != nil {
			t.Fatalf("failed to delete mappings: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 deleted mappings, got %d", count)
		}

		mappings, err := db.GetMappingsByUserID(userID)
		if err != nil {
			t.Fatalf("failed to list mappings: %v", err)
		}
		if len(mappings) != 0 {
			t.Errorf("expected no mappings, got %d", len(mappings))
		}
	})
}

func TestSyncLogQueries(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "test@example.com")

	for i := 0; i < 3; i++ {
		log := &SyncLog{
			UserID:          userID,
			SyncType:        "manual",
			Direction:       DirectionBidirectional,
			Status:          "success",
			EventsProcessed: i,
			Message:         "Synced events.",
		}
		if err := db.CreateSyncLog(log); err != nil {
			t.Fatalf("failed to create sync log: %v", err)
		}
	}

	t.Run("limit is honored", func(t *testing.T) {
		logs, err := db.GetSyncLogs(userID, 2)
		if err != nil {
			t.Fatalf("failed to get sync logs: %v", err)
		}
		if len(logs) != 2 {
			t.Errorf("expected 2 logs, got %d", len(logs))
		}
	})

	t.Run("scoped to user", func(t *testing.T) {
		otherID := createTestUser(t, db, "other@example.com")
		logs, err := db.GetSyncLogs(otherID, 10)
		if err != nil {
			t.Fatalf("failed to get sync logs: %v", err)
		}
		if len(logs) != 0 {
			t.Errorf("expected no logs for other user, got %d", len(logs))
		}
	})
}

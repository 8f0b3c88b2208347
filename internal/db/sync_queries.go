package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCredential is returned when a credential is stored without a
// refresh token. Such a credential cannot outlive its first access token,
// so it is rejected outright.
var ErrInvalidCredential = errors.New("credential is missing a refresh token")

// UpsertGoogleCredential creates or replaces the credential for a user.
func (db *DB) UpsertGoogleCredential(cred *GoogleCredential) error {
	if cred.RefreshToken == "" {
		return ErrInvalidCredential
	}

	now := time.Now().UTC()
	cred.UpdatedAt = now

	query := `INSERT INTO google_credentials (user_id, access_token, refresh_token, token_expiry, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			scope = excluded.scope,
			updated_at = excluded.updated_at`

	_, err := db.conn.Exec(query, cred.UserID, cred.AccessToken, cred.RefreshToken,
		cred.TokenExpiry, cred.Scope, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// GetGoogleCredential returns the stored credential for a user.
func (db *DB) GetGoogleCredential(userID string) (*GoogleCredential, error) {
	query := `SELECT user_id, access_token, refresh_token, token_expiry, scope, created_at, updated_at
		FROM google_credentials WHERE user_id = ?`

	row := db.conn.QueryRow(query, userID)

	cred := &GoogleCredential{}
	err := row.Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken,
		&cred.TokenExpiry, &cred.Scope, &cred.CreatedAt, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// DeleteGoogleCredential removes the credential for a user. Idempotent.
func (db *DB) DeleteGoogleCredential(userID string) error {
	_, err := db.conn.Exec(`DELETE FROM google_credentials WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// UpsertSyncSettings creates or replaces the sync settings for a user.
func (db *DB) UpsertSyncSettings(settings *SyncSettings) error {
	now := time.Now().UTC()
	settings.UpdatedAt = now
	if settings.AutoSyncInterval == 0 {
		settings.AutoSyncInterval = 60
	}

	query := `INSERT INTO google_sync_settings (
		user_id, google_calendar_id, sync_enabled, sync_interviews, sync_deadlines,
		sync_applications, sync_follow_ups, sync_custom_events, auto_sync_interval,
		last_sync_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		google_calendar_id = excluded.google_calendar_id,
		sync_enabled = excluded.sync_enabled,
		sync_interviews = excluded.sync_interviews,
		sync_deadlines = excluded.sync_deadlines,
		sync_applications = excluded.sync_applications,
		sync_follow_ups = excluded.sync_follow_ups,
		sync_custom_events = excluded.sync_custom_events,
		auto_sync_interval = excluded.auto_sync_interval,
		updated_at = excluded.updated_at`

	_, err := db.conn.Exec(query,
		settings.UserID, settings.GoogleCalendarID, settings.SyncEnabled,
		settings.SyncInterviews, settings.SyncDeadlines, settings.SyncApplications,
		settings.SyncFollowUps, settings.SyncCustomEvents, settings.AutoSyncInterval,
		settings.LastSyncAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync settings: %w", err)
	}

	return nil
}

// GetSyncSettings returns the sync settings for a user regardless of the
// master enable flag.
func (db *DB) GetSyncSettings(userID string) (*SyncSettings, error) {
	query := `SELECT user_id, google_calendar_id, sync_enabled, sync_interviews,
		sync_deadlines, sync_applications, sync_follow_ups, sync_custom_events,
		auto_sync_interval, last_sync_at, created_at, updated_at
		FROM google_sync_settings WHERE user_id = ?`

	row := db.conn.QueryRow(query, userID)

	settings := &SyncSettings{}
	var lastSync sql.NullTime
	err := row.Scan(&settings.UserID, &settings.GoogleCalendarID, &settings.SyncEnabled,
		&settings.SyncInterviews, &settings.SyncDeadlines, &settings.SyncApplications,
		&settings.SyncFollowUps, &settings.SyncCustomEvents, &settings.AutoSyncInterval,
		&lastSync, &settings.CreatedAt, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync settings: %w", err)
	}

	if lastSync.Valid {
		settings.LastSyncAt = &lastSync.Time
	}

	return settings, nil
}

// GetActiveSyncSettings returns the sync settings for a user only when the
// master enable flag is set. This is the single gate the engine uses to
// decide whether a user is syncing at all.
func (db *DB) GetActiveSyncSettings(userID string) (*SyncSettings, error) {
	settings, err := db.GetSyncSettings(userID)
	if err != nil {
		return nil, err
	}
	if !settings.SyncEnabled {
		return nil, ErrNotFound
	}
	return settings, nil
}

// SetSyncEnabled flips the master enable flag without touching the rest of
// the settings. Used by disconnect, which disables rather than deletes.
func (db *DB) SetSyncEnabled(userID string, enabled bool) error {
	now := time.Now().UTC()
	result, err := db.conn.Exec(
		`UPDATE google_sync_settings SET sync_enabled = ?, updated_at = ? WHERE user_id = ?`,
		enabled, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update sync enabled flag: %w", err)
	}
	return requireRowsAffected(result)
}

// TouchLastSyncAt stamps the last successful sync time for a user.
func (db *DB) TouchLastSyncAt(userID string, at time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE google_sync_settings SET last_sync_at = ?, updated_at = ? WHERE user_id = ?`,
		at.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to stamp last sync time: %w", err)
	}
	return nil
}

// GetMappingByReference returns the mapping for an internal event identity.
func (db *DB) GetMappingByReference(userID, eventType, referenceID string) (*EventMapping, error) {
	query := mappingSelect + ` WHERE user_id = ? AND app_event_type = ? AND app_event_reference_id = ?`
	row := db.conn.QueryRow(query, userID, eventType, referenceID)
	return scanMapping(row.Scan)
}

// GetMappingByGoogleEvent returns the mapping for an external event identity.
func (db *DB) GetMappingByGoogleEvent(userID, googleEventID string) (*EventMapping, error) {
	query := mappingSelect + ` WHERE user_id = ? AND google_event_id = ?`
	row := db.conn.QueryRow(query, userID, googleEventID)
	return scanMapping(row.Scan)
}

// GetMappingsByUserID returns all mappings for a user.
func (db *DB) GetMappingsByUserID(userID string) ([]*EventMapping, error) {
	query := mappingSelect + ` WHERE user_id = ? ORDER BY created_at`

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*EventMapping
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// UpsertEventMapping inserts a mapping or, on a natural-key conflict,
// refreshes the mutable columns. Keyed writes avoid duplicate rows when
// concurrent passes race on the same event.
func (db *DB) UpsertEventMapping(m *EventMapping) error {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = SyncStatusPending
	}
	if m.Origin == "" {
		m.Origin = OriginInternal
	}
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = now
	}
	m.UpdatedAt = now

	var query string
	if m.Origin == OriginGoogle {
		query = `INSERT INTO google_event_mappings (
			id, user_id, app_event_type, app_event_reference_id, app_event_id,
			google_calendar_id, google_event_id, last_synced_at, sync_status, etag,
			origin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, google_event_id) WHERE origin = 'google' DO UPDATE SET
			app_event_id = excluded.app_event_id,
			google_calendar_id = excluded.google_calendar_id,
			last_synced_at = excluded.last_synced_at,
			sync_status = excluded.sync_status,
			etag = excluded.etag,
			updated_at = excluded.updated_at`
	} else {
		query = `INSERT INTO google_event_mappings (
			id, user_id, app_event_type, app_event_reference_id, app_event_id,
			google_calendar_id, google_event_id, last_synced_at, sync_status, etag,
			origin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, app_event_type, app_event_reference_id) WHERE origin = 'internal' DO UPDATE SET
			google_calendar_id = excluded.google_calendar_id,
			google_event_id = excluded.google_event_id,
			last_synced_at = excluded.last_synced_at,
			sync_status = excluded.sync_status,
			etag = excluded.etag,
			updated_at = excluded.updated_at`
	}

	_, err := db.conn.Exec(query,
		m.ID, m.UserID, m.AppEventType, m.AppEventReferenceID, m.AppEventID,
		m.GoogleCalendarID, m.GoogleEventID, m.LastSyncedAt, m.SyncStatus,
		m.ETag, m.Origin, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event mapping: %w", err)
	}

	return nil
}

// UpdateMappingSyncState updates the sync bookkeeping fields of a mapping,
// including the remote calendar and event ids. The create-and-remap path
// rewrites both when the replacement lands in a retargeted calendar.
func (db *DB) UpdateMappingSyncState(id, googleCalendarID, googleEventID string, status SyncStatus, etag string, syncedAt time.Time) error {
	query := `UPDATE google_event_mappings SET
		google_calendar_id = ?, google_event_id = ?, sync_status = ?, etag = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := db.conn.Exec(query, googleCalendarID, googleEventID, status, etag, syncedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update mapping sync state: %w", err)
	}

	return requireRowsAffected(result)
}

// DeleteMappingsForUser removes all event mappings for a user. Only the
// disconnect flow calls this; mappings are never deleted one at a time.
func (db *DB) DeleteMappingsForUser(userID string) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM google_event_mappings WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mappings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// CreateSyncLog appends a sync log entry.
func (db *DB) CreateSyncLog(log *SyncLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CompletedAt.IsZero() {
		log.CompletedAt = time.Now().UTC()
	}

	query := `INSERT INTO google_sync_logs (id, user_id, sync_type, direction, status,
		events_processed, errors_count, message, error_details, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.Exec(query, log.ID, log.UserID, log.SyncType, log.Direction,
		log.Status, log.EventsProcessed, log.ErrorsCount, log.Message,
		log.ErrorDetails, log.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}

	return nil
}

// GetSyncLogs returns the most recent sync logs for a user.
func (db *DB) GetSyncLogs(userID string, limit int) ([]*SyncLog, error) {
	query := `SELECT id, user_id, sync_type, direction, status, events_processed,
		errors_count, message, error_details, completed_at
		FROM google_sync_logs WHERE user_id = ? ORDER BY completed_at DESC LIMIT ?`

	rows, err := db.conn.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var logs []*SyncLog
	for rows.Next() {
		log := &SyncLog{}
		var message, details sql.NullString
		err := rows.Scan(&log.ID, &log.UserID, &log.SyncType, &log.Direction,
			&log.Status, &log.EventsProcessed, &log.ErrorsCount, &message,
			&details, &log.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		log.Message = message.String
		log.ErrorDetails = details.String
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}

	return logs, nil
}

const mappingSelect = `SELECT id, user_id, app_event_type, app_event_reference_id,
	app_event_id, google_calendar_id, google_event_id, last_synced_at,
	sync_status, etag, origin, created_at, updated_at
	FROM google_event_mappings`

// scanMapping scans a row into an EventMapping using the given scan function.
func scanMapping(scan func(dest ...any) error) (*EventMapping, error) {
	m := &EventMapping{}
	var appEventID, etag sql.NullString

	err := scan(
		&m.ID, &m.UserID, &m.AppEventType, &m.AppEventReferenceID, &appEventID,
		&m.GoogleCalendarID, &m.GoogleEventID, &m.LastSyncedAt, &m.SyncStatus,
		&etag, &m.Origin, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event mapping: %w", err)
	}

	if appEventID.Valid {
		m.AppEventID = &appEventID.String
	}
	m.ETag = etag.String

	return m, nil
}

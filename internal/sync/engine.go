package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
)

// pullWindowPast and pullWindowFuture bound the remote event listing
// during a pull pass.
const (
	pullWindowPast   = 30 * 24 * time.Hour
	pullWindowFuture = 6 * 30 * 24 * time.Hour
)

// Result is the outcome of one sync pass. Every engine entry point
// returns a Result; no error escapes as a plain error.
type Result struct {
	Success         bool     `json:"success"`
	EventsProcessed int      `json:"events_processed"`
	ErrorsCount     int      `json:"errors_count"`
	Errors          []string `json:"errors,omitempty"`
	Message         string   `json:"message"`
}

// CalendarAPI is the slice of the Google gateway the engine needs.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, userID, calendarID string, event *google.Event) (*google.Event, error)
	UpdateEvent(ctx context.Context, userID, calendarID, eventID string, event *google.Event) (*google.Event, error)
	GetEvent(ctx context.Context, userID, calendarID, eventID string) (*google.Event, error)
	ListEvents(ctx context.Context, userID, calendarID string, from, to time.Time) ([]*google.Event, error)
}

// Engine reconciles internal events against Google Calendar. It holds no
// state of its own; every invocation is a fresh pass over both sides.
type Engine struct {
	db       *db.DB
	calendar CalendarAPI
}

// NewEngine creates a sync engine.
func NewEngine(database *db.DB, calendar CalendarAPI) *Engine {
	return &Engine{
		db:       database,
		calendar: calendar,
	}
}

// SyncAppEventsToGoogle pushes the user's internal events to their
// configured Google calendar, creating or updating remote events and
// maintaining the mapping ledger.
func (e *Engine) SyncAppEventsToGoogle(ctx context.Context, userID string) *Result {
	settings, result := e.loadSettings(userID)
	if result != nil {
		return result
	}

	events, err := e.buildUserEvents(userID, settings)
	if err != nil {
		return &Result{Message: fmt.Sprintf("Failed to load events: %v", err)}
	}

	result = &Result{Errors: make([]string, 0)}

	for _, event := range events {
		if err := e.pushEvent(ctx, userID, settings.GoogleCalendarID, event); err != nil {
			if isAuthFailure(err) {
				return &Result{Message: "Google authentication required"}
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", event.Title, err))
			continue
		}
		result.EventsProcessed++
	}

	if err := e.db.TouchLastSyncAt(userID, time.Now()); err != nil {
		log.Printf("Failed to stamp last sync time for user %s: %v", userID, err)
	}

	e.finishResult(result)
	return result
}

// pushEvent reconciles one internal event against the remote calendar.
func (e *Engine) pushEvent(ctx context.Context, userID, calendarID string, event *AppEvent) error {
	payload := ToGoogleEvent(event)

	mapping, err := e.db.GetMappingByReference(userID, event.Category, event.ReferenceID)
	if errors.Is(err, db.ErrNotFound) {
		created, err := e.calendar.CreateEvent(ctx, userID, calendarID, payload)
		if err != nil {
			return err
		}

		return e.db.UpsertEventMapping(&db.EventMapping{
			UserID:              userID,
			AppEventType:        event.Category,
			AppEventReferenceID: event.ReferenceID,
			AppEventID:          event.EventID,
			GoogleCalendarID:    calendarID,
			GoogleEventID:       created.ID,
			SyncStatus:          db.SyncStatusSynced,
			ETag:                created.ETag,
			Origin:              db.OriginInternal,
		})
	}
	if err != nil {
		return err
	}

	// Updates address the settings' calendar, not the one recorded on the
	// mapping. After the user retargets sync, the update 404s against the
	// new calendar and the remap below moves the mapping over.
	updated, err := e.calendar.UpdateEvent(ctx, userID, calendarID, mapping.GoogleEventID, payload)
	if err != nil {
		// Replace only on confirmed remote deletion. A transient failure
		// must not spawn a duplicate remote event.
		if !google.IsEventGone(err) {
			if markErr := e.db.UpdateMappingSyncState(mapping.ID, mapping.GoogleCalendarID, mapping.GoogleEventID, db.SyncStatusError, mapping.ETag, time.Now()); markErr != nil {
				log.Printf("Failed to mark mapping %s as errored: %v", mapping.ID, markErr)
			}
			return err
		}

		created, createErr := e.calendar.CreateEvent(ctx, userID, calendarID, payload)
		if createErr != nil {
			return createErr
		}

		log.Printf("Remote event %s vanished, recreated as %s", mapping.GoogleEventID, created.ID)
		return e.db.UpdateMappingSyncState(mapping.ID, calendarID, created.ID, db.SyncStatusSynced, created.ETag, time.Now())
	}

	return e.db.UpdateMappingSyncState(mapping.ID, calendarID, updated.ID, db.SyncStatusSynced, updated.ETag, time.Now())
}

// SyncGoogleEventsToApp pulls foreign events from the user's configured
// Google calendar into the app as custom events.
func (e *Engine) SyncGoogleEventsToApp(ctx context.Context, userID string) *Result {
	settings, result := e.loadSettings(userID)
	if result != nil {
		return result
	}

	now := time.Now()
	remoteEvents, err := e.calendar.ListEvents(ctx, userID, settings.GoogleCalendarID,
		now.Add(-pullWindowPast), now.Add(pullWindowFuture))
	if err != nil {
		if isAuthFailure(err) {
			return &Result{Message: "Google authentication required"}
		}
		return &Result{Message: fmt.Sprintf("Failed to list Google events: %v", err)}
	}

	result = &Result{Errors: make([]string, 0)}

	for _, remote := range remoteEvents {
		if isAppOrigin(remote) {
			continue
		}

		if err := e.pullEvent(userID, settings.GoogleCalendarID, remote); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", remote.Summary, err))
			continue
		}
		result.EventsProcessed++
	}

	e.finishResult(result)
	return result
}

// pullEvent imports or refreshes one foreign remote event.
func (e *Engine) pullEvent(userID, calendarID string, remote *google.Event) error {
	mapping, err := e.db.GetMappingByGoogleEvent(userID, remote.ID)
	if errors.Is(err, db.ErrNotFound) {
		imported := FromGoogleEvent(userID, remote)
		if err := e.db.CreateCalendarEvent(imported); err != nil {
			return err
		}

		return e.db.UpsertEventMapping(&db.EventMapping{
			UserID:              userID,
			AppEventType:        CategoryCustom,
			AppEventReferenceID: imported.ID,
			AppEventID:          &imported.ID,
			GoogleCalendarID:    calendarID,
			GoogleEventID:       remote.ID,
			SyncStatus:          db.SyncStatusSynced,
			ETag:                remote.ETag,
			Origin:              db.OriginGoogle,
		})
	}
	if err != nil {
		return err
	}

	if mapping.AppEventID == nil {
		return fmt.Errorf("mapping %s has no linked calendar event", mapping.ID)
	}

	event, err := e.db.GetCalendarEventByID(*mapping.AppEventID)
	if err != nil {
		return err
	}

	// Last remote write wins; no field-level merge.
	event.Title = remote.Summary
	event.Description = remote.Description
	event.StartTime = remote.Start
	event.EndTime = remote.End
	event.AllDay = remote.AllDay
	event.Location = remote.Location

	if err := e.db.UpdateCalendarEvent(event); err != nil {
		return err
	}

	return e.db.UpdateMappingSyncState(mapping.ID, calendarID, remote.ID, db.SyncStatusSynced, remote.ETag, time.Now())
}

// SyncBidirectional runs push and pull concurrently and records one sync
// log entry for the combined outcome. The two passes share no mutable
// state; mapping rows are partitioned by origin, so a push never touches
// a pull-owned row and vice versa.
func (e *Engine) SyncBidirectional(ctx context.Context, userID string) *Result {
	pushCh := make(chan *Result, 1)
	pullCh := make(chan *Result, 1)

	go func() { pushCh <- e.SyncAppEventsToGoogle(ctx, userID) }()
	go func() { pullCh <- e.SyncGoogleEventsToApp(ctx, userID) }()

	push := <-pushCh
	pull := <-pullCh

	combined := &Result{
		Success:         push.Success && pull.Success,
		EventsProcessed: push.EventsProcessed + pull.EventsProcessed,
		ErrorsCount:     push.ErrorsCount + pull.ErrorsCount,
		Errors:          append(append([]string{}, push.Errors...), pull.Errors...),
		Message:         fmt.Sprintf("Push: %s Pull: %s", push.Message, pull.Message),
	}

	e.writeSyncLog(userID, "manual", db.DirectionBidirectional, combined)
	return combined
}

// RunSync dispatches a sync request by direction and writes a sync log
// entry for the one-directional passes. Bidirectional logging happens
// inside SyncBidirectional.
func (e *Engine) RunSync(ctx context.Context, userID string, direction db.SyncDirection) *Result {
	switch direction {
	case db.DirectionAppToGoogle:
		result := e.SyncAppEventsToGoogle(ctx, userID)
		e.writeSyncLog(userID, "manual", direction, result)
		return result
	case db.DirectionGoogleToApp:
		result := e.SyncGoogleEventsToApp(ctx, userID)
		e.writeSyncLog(userID, "manual", direction, result)
		return result
	default:
		return e.SyncBidirectional(ctx, userID)
	}
}

// loadSettings resolves active sync settings, or a short-circuit Result
// when the user is not syncing.
func (e *Engine) loadSettings(userID string) (*db.SyncSettings, *Result) {
	settings, err := e.db.GetActiveSyncSettings(userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &Result{Message: "Sync not enabled"}
	}
	if err != nil {
		return nil, &Result{Message: fmt.Sprintf("Failed to load sync settings: %v", err)}
	}
	return settings, nil
}

// buildUserEvents loads the three internal sources and materializes the
// event union for a push pass.
func (e *Engine) buildUserEvents(userID string, settings *db.SyncSettings) ([]*AppEvent, error) {
	apps, err := e.db.GetApplicationsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}

	interviews, err := e.db.GetInterviewsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interviews: %w", err)
	}

	customEvents, err := e.db.GetSyncableCalendarEvents(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar events: %w", err)
	}

	return BuildEvents(apps, interviews, customEvents, settings, time.Now()), nil
}

// finishResult fills in the summary fields of a completed pass.
func (e *Engine) finishResult(result *Result) {
	result.ErrorsCount = len(result.Errors)
	result.Success = result.ErrorsCount == 0

	if result.Success {
		result.Message = fmt.Sprintf("Synced %d events.", result.EventsProcessed)
	} else {
		result.Message = fmt.Sprintf("Synced %d events with %d errors.", result.EventsProcessed, result.ErrorsCount)
	}
}

// writeSyncLog persists an audit record for a finished pass. Log failures
// are not fatal to the sync itself.
func (e *Engine) writeSyncLog(userID, syncType string, direction db.SyncDirection, result *Result) {
	status := "success"
	if !result.Success {
		status = "error"
	}

	entry := &db.SyncLog{
		UserID:          userID,
		SyncType:        syncType,
		Direction:       direction,
		Status:          status,
		EventsProcessed: result.EventsProcessed,
		ErrorsCount:     result.ErrorsCount,
		Message:         result.Message,
	}
	if len(result.Errors) > 0 {
		entry.ErrorDetails = strings.Join(result.Errors, "; ")
	}

	if err := e.db.CreateSyncLog(entry); err != nil {
		log.Printf("Failed to create sync log for user %s: %v", userID, err)
	}
}

// isAuthFailure reports whether an error means the user has no usable
// Google credential and the whole pass should fail at once.
func isAuthFailure(err error) bool {
	return errors.Is(err, google.ErrNotConnected) || errors.Is(err, google.ErrInvalidGrant)
}

package sync

import (
	"strings"
	"time"

	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
)

// SyncMarker tags every event the app pushes to Google. The pull pass
// filters on it so the app never reimports its own output.
const SyncMarker = "Created by Job Application Tracker"

// Google Calendar color ids per event category. An explicit per-event
// color wins over the category default.
var categoryColors = map[string]string{
	CategoryInterview:   "9", // blueberry
	CategoryDeadline:    "5", // banana
	CategoryApplication: "2", // sage
	CategoryFollowUp:    "3", // grape
	CategoryCustom:      "1", // lavender
}

// ToGoogleEvent converts a synthesized internal event into the gateway
// representation. Deadline and application events are always all-day, as
// is anything spanning a full day or more.
func ToGoogleEvent(event *AppEvent) *google.Event {
	allDay := event.Category == CategoryDeadline ||
		event.Category == CategoryApplication ||
		event.End.Sub(event.Start) >= 24*time.Hour

	start, end := event.Start, event.End
	if allDay {
		start = truncateToDate(start)
		end = truncateToDate(end)
		// all-day ends are exclusive, so a single-day event spans one day
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}

	color := categoryColors[event.Category]
	if event.Color != "" {
		color = event.Color
	}

	return &google.Event{
		Summary:     event.Title,
		Description: buildDescription(event),
		Location:    event.Location,
		ColorID:     color,
		AllDay:      allDay,
		Start:       start,
		End:         end,
	}
}

// buildDescription appends the application context and the origin marker
// to the event's own description.
func buildDescription(event *AppEvent) string {
	var b strings.Builder

	if event.Description != "" {
		b.WriteString(event.Description)
		b.WriteString("\n\n")
	}
	if event.CompanyName != "" {
		b.WriteString("Company: ")
		b.WriteString(event.CompanyName)
		b.WriteString("\n")
	}
	if event.Position != "" {
		b.WriteString("Position: ")
		b.WriteString(event.Position)
		b.WriteString("\n")
	}
	if event.Status != "" {
		b.WriteString("Status: ")
		b.WriteString(event.Status)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(SyncMarker)

	return b.String()
}

// FromGoogleEvent converts a remote event into a stored custom event. The
// original category of a foreign event is unknowable, so everything comes
// in as custom.
func FromGoogleEvent(userID string, remote *google.Event) *db.CalendarEvent {
	return &db.CalendarEvent{
		UserID:      userID,
		Title:       remote.Summary,
		Description: remote.Description,
		StartTime:   remote.Start,
		EndTime:     remote.End,
		EventType:   CategoryCustom,
		AllDay:      remote.AllDay,
		Location:    remote.Location,
	}
}

// isAppOrigin reports whether a remote event was pushed by this app.
func isAppOrigin(remote *google.Event) bool {
	return strings.Contains(remote.Description, SyncMarker)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

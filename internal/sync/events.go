// Package sync reconciles the app's job-search events against a user's
// Google Calendar in either or both directions.
package sync

import (
	"fmt"
	"time"

	"github.com/asesson/job-Application-Tracker/internal/db"
)

// Event categories. Deadline, application and follow-up events are derived
// from application records; interview events from interview records; custom
// events are stored rows in their own right.
const (
	CategoryInterview   = "interview"
	CategoryDeadline    = "deadline"
	CategoryApplication = "application"
	CategoryFollowUp    = "follow_up"
	CategoryCustom      = "custom"
)

// followUpInactivity is how long an application in the applied state must
// sit untouched before a follow-up reminder is synthesized.
const followUpInactivity = 7 * 24 * time.Hour

// followUpDelay is how far after the submission date the synthesized
// follow-up reminder is placed.
const followUpDelay = 14 * 24 * time.Hour

// placeholderDuration is the length given to derived events that have a
// date but no natural duration (deadlines, submissions, follow-ups).
const placeholderDuration = time.Hour

// AppEvent is one entry in the synthesized union of internal events. It is
// identified for mapping purposes by (Category, ReferenceID); EventID is
// set only for custom events, the one category with its own stored row.
type AppEvent struct {
	Category    string
	ReferenceID string
	EventID     *string

	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Color       string

	CompanyName string
	Position    string
	Status      string
}

// BuildEvents materializes the internal event union for one user,
// restricted to the categories enabled in settings. It is a pure function
// of its inputs; nothing is cached across calls.
func BuildEvents(apps []*db.Application, interviews []*db.Interview, customEvents []*db.CalendarEvent, settings *db.SyncSettings, now time.Time) []*AppEvent {
	var events []*AppEvent

	appsByID := make(map[string]*db.Application, len(apps))
	for _, app := range apps {
		appsByID[app.ID] = app
	}

	if settings.SyncInterviews {
		for _, iv := range interviews {
			if iv.Status == "cancelled" {
				continue
			}

			event := &AppEvent{
				Category:    CategoryInterview,
				ReferenceID: iv.ID,
				Title:       "Interview",
				Description: iv.Notes,
				Location:    iv.Location,
				Start:       iv.ScheduledAt,
				End:         iv.ScheduledAt.Add(time.Duration(iv.DurationMinutes) * time.Minute),
			}
			if iv.Location == "" && iv.MeetingLink != "" {
				event.Location = iv.MeetingLink
			}

			if app, ok := appsByID[iv.ApplicationID]; ok {
				event.Title = fmt.Sprintf("Interview: %s", app.CompanyName)
				event.CompanyName = app.CompanyName
				event.Position = app.JobTitle
				event.Status = string(app.Status)
			}

			events = append(events, event)
		}
	}

	for _, app := range apps {
		if settings.SyncDeadlines && app.Deadline != nil {
			events = append(events, &AppEvent{
				Category:    CategoryDeadline,
				ReferenceID: app.ID,
				Title:       fmt.Sprintf("Application Deadline: %s", app.CompanyName),
				Description: app.Notes,
				Start:       *app.Deadline,
				End:         app.Deadline.Add(placeholderDuration),
				CompanyName: app.CompanyName,
				Position:    app.JobTitle,
				Status:      string(app.Status),
			})
		}

		if settings.SyncApplications && !app.ApplicationDate.IsZero() {
			events = append(events, &AppEvent{
				Category:    CategoryApplication,
				ReferenceID: app.ID,
				Title:       fmt.Sprintf("Applied: %s", app.CompanyName),
				Start:       app.ApplicationDate,
				End:         app.ApplicationDate.Add(placeholderDuration),
				CompanyName: app.CompanyName,
				Position:    app.JobTitle,
				Status:      string(app.Status),
			})
		}

		if settings.SyncFollowUps && needsFollowUp(app, now) {
			followUpAt := app.ApplicationDate.Add(followUpDelay)
			events = append(events, &AppEvent{
				Category:    CategoryFollowUp,
				ReferenceID: app.ID,
				Title:       fmt.Sprintf("Follow up: %s", app.CompanyName),
				Description: fmt.Sprintf("No response since applying on %s", app.ApplicationDate.Format("Jan 2, 2006")),
				Start:       followUpAt,
				End:         followUpAt.Add(placeholderDuration),
				CompanyName: app.CompanyName,
				Position:    app.JobTitle,
				Status:      string(app.Status),
			})
		}
	}

	if settings.SyncCustomEvents {
		for _, ce := range customEvents {
			eventID := ce.ID
			event := &AppEvent{
				Category:    CategoryCustom,
				ReferenceID: ce.ID,
				EventID:     &eventID,
				Title:       ce.Title,
				Description: ce.Description,
				Location:    ce.Location,
				Start:       ce.StartTime,
				End:         ce.EndTime,
				Color:       ce.Color,
			}

			if ce.ApplicationID != nil {
				if app, ok := appsByID[*ce.ApplicationID]; ok {
					event.CompanyName = app.CompanyName
					event.Position = app.JobTitle
					event.Status = string(app.Status)
				}
			}

			events = append(events, event)
		}
	}

	return events
}

// needsFollowUp reports whether an application warrants a synthesized
// follow-up reminder: still in the applied state with no activity for at
// least a week.
func needsFollowUp(app *db.Application, now time.Time) bool {
	if app.Status != db.StatusApplied {
		return false
	}
	if app.ApplicationDate.IsZero() {
		return false
	}
	return now.Sub(app.UpdatedAt) >= followUpInactivity
}

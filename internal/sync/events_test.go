package sync

import (
	"testing"
	"time"

	"github.com/asesson/job-Application-Tracker/internal/db"
)

func allCategories() *db.SyncSettings {
	return &db.SyncSettings{
		SyncEnabled:      true,
		SyncInterviews:   true,
		SyncDeadlines:    true,
		SyncApplications: true,
		SyncFollowUps:    true,
		SyncCustomEvents: true,
	}
}

func TestBuildEvents(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(72 * time.Hour)

	app := &db.Application{
		ID:              "app-1",
		CompanyName:     "Acme",
		JobTitle:        "Engineer",
		Status:          db.StatusApplied,
		ApplicationDate: now.Add(-10 * 24 * time.Hour),
		Deadline:        &deadline,
		UpdatedAt:       now.Add(-10 * 24 * time.Hour),
	}

	interview := &db.Interview{
		ID:              "iv-1",
		ApplicationID:   "app-1",
		ScheduledAt:     now.Add(24 * time.Hour),
		DurationMinutes: 45,
		Status:          "scheduled",
		MeetingLink:     "https://meet.example.com/abc",
	}

	custom := &db.CalendarEvent{
		ID:        "ce-1",
		Title:     "Networking coffee",
		StartTime: now.Add(48 * time.Hour),
		EndTime:   now.Add(49 * time.Hour),
	}

	t.Run("all categories enabled", func(t *testing.T) {
		events := BuildEvents([]*db.Application{app}, []*db.Interview{interview},
			[]*db.CalendarEvent{custom}, allCategories(), now)

		byCategory := make(map[string]*AppEvent)
		for _, ev := range events {
			byCategory[ev.Category] = ev
		}

		if len(events) != 5 {
			t.Fatalf("expected 5 events, got %d", len(events))
		}
		for _, cat := range []string{CategoryInterview, CategoryDeadline, CategoryApplication, CategoryFollowUp, CategoryCustom} {
			if byCategory[cat] == nil {
				t.Errorf("expected a %s event", cat)
			}
		}

		iv := byCategory[CategoryInterview]
		if iv.Title != "Interview: Acme" {
			t.Errorf("unexpected interview title: %s", iv.Title)
		}
		if iv.Location != "https://meet.example.com/abc" {
			t.Errorf("expected meeting link as location fallback, got %s", iv.Location)
		}
		if got := iv.End.Sub(iv.Start); got != 45*time.Minute {
			t.Errorf("expected 45m duration, got %v", got)
		}

		fu := byCategory[CategoryFollowUp]
		wantStart := app.ApplicationDate.Add(14 * 24 * time.Hour)
		if !fu.Start.Equal(wantStart) {
			t.Errorf("expected follow-up at %v, got %v", wantStart, fu.Start)
		}

		ce := byCategory[CategoryCustom]
		if ce.EventID == nil || *ce.EventID != "ce-1" {
			t.Errorf("expected custom event id ce-1, got %v", ce.EventID)
		}
	})

	t.Run("toggles gate categories", func(t *testing.T) {
		settings := &db.SyncSettings{SyncEnabled: true, SyncInterviews: true}
		events := BuildEvents([]*db.Application{app}, []*db.Interview{interview},
			[]*db.CalendarEvent{custom}, settings, now)

		if len(events) != 1 {
			t.Fatalf("expected only the interview, got %d events", len(events))
		}
		if events[0].Category != CategoryInterview {
			t.Errorf("expected interview, got %s", events[0].Category)
		}
	})

	t.Run("cancelled interviews are skipped", func(t *testing.T) {
		cancelled := &db.Interview{
			ID:            "iv-2",
			ApplicationID: "app-1",
			ScheduledAt:   now.Add(24 * time.Hour),
			Status:        "cancelled",
		}
		settings := &db.SyncSettings{SyncEnabled: true, SyncInterviews: true}
		events := BuildEvents(nil, []*db.Interview{cancelled}, nil, settings, now)

		if len(events) != 0 {
			t.Errorf("expected no events for cancelled interview, got %d", len(events))
		}
	})

	t.Run("location wins over meeting link", func(t *testing.T) {
		onsite := &db.Interview{
			ID:              "iv-3",
			ApplicationID:   "app-1",
			ScheduledAt:     now.Add(24 * time.Hour),
			DurationMinutes: 60,
			Status:          "scheduled",
			Location:        "HQ, Floor 3",
			MeetingLink:     "https://meet.example.com/xyz",
		}
		settings := &db.SyncSettings{SyncEnabled: true, SyncInterviews: true}
		events := BuildEvents([]*db.Application{app}, []*db.Interview{onsite}, nil, settings, now)

		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Location != "HQ, Floor 3" {
			t.Errorf("expected physical location, got %s", events[0].Location)
		}
	})
}

func TestNeedsFollowUp(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	base := db.Application{
		Status:          db.StatusApplied,
		ApplicationDate: now.Add(-20 * 24 * time.Hour),
		UpdatedAt:       now.Add(-8 * 24 * time.Hour),
	}

	tests := []struct {
		name   string
		modify func(*db.Application)
		want   bool
	}{
		{"applied and inactive", func(a *db.Application) {}, true},
		{"exactly a week inactive", func(a *db.Application) {
			a.UpdatedAt = now.Add(-7 * 24 * time.Hour)
		}, true},
		{"recently touched", func(a *db.Application) {
			a.UpdatedAt = now.Add(-6 * 24 * time.Hour)
		}, false},
		{"status moved on", func(a *db.Application) {
			a.Status = db.StatusInterviewScheduled
		}, false},
		{"no application date", func(a *db.Application) {
			a.ApplicationDate = time.Time{}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := base
			tt.modify(&app)
			if got := needsFollowUp(&app, now); got != tt.want {
				t.Errorf("needsFollowUp() = %v, want %v", got, tt.want)
			}
		})
	}
}

package db

import (
	"time"
)

// ApplicationStatus represents the lifecycle stage of a job application.
type ApplicationStatus string

const (
	StatusApplied            ApplicationStatus = "applied"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusInterviewCompleted ApplicationStatus = "interview_completed"
	StatusOfferReceived      ApplicationStatus = "offer_received"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// ValidApplicationStatuses contains all valid application status values.
var ValidApplicationStatuses = map[ApplicationStatus]bool{
	StatusApplied:            true,
	StatusInterviewScheduled: true,
	StatusInterviewCompleted: true,
	StatusOfferReceived:      true,
	StatusRejected:           true,
	StatusWithdrawn:          true,
}

// IsValid returns true if the status is a known valid value.
func (s ApplicationStatus) IsValid() bool {
	return ValidApplicationStatuses[s]
}

// Priority represents the user-assigned priority of an application.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities contains all valid priority values.
var ValidPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

// IsValid returns true if the priority is a known valid value.
func (p Priority) IsValid() bool {
	return ValidPriorities[p]
}

// InterviewType represents the format of an interview round.
type InterviewType string

const (
	InterviewPhoneScreen InterviewType = "phone_screen"
	InterviewVideoCall   InterviewType = "video_call"
	InterviewInPerson    InterviewType = "in_person"
	InterviewTechnical   InterviewType = "technical"
	InterviewPanel       InterviewType = "panel"
	InterviewFinal       InterviewType = "final"
)

// ValidInterviewTypes contains all valid interview type values.
var ValidInterviewTypes = map[InterviewType]bool{
	InterviewPhoneScreen: true,
	InterviewVideoCall:   true,
	InterviewInPerson:    true,
	InterviewTechnical:   true,
	InterviewPanel:       true,
	InterviewFinal:       true,
}

// IsValid returns true if the interview type is a known valid value.
func (it InterviewType) IsValid() bool {
	return ValidInterviewTypes[it]
}

// DocumentType represents the kind of document attached to an application.
type DocumentType string

const (
	DocumentResume      DocumentType = "resume"
	DocumentCoverLetter DocumentType = "cover_letter"
	DocumentPortfolio   DocumentType = "portfolio"
	DocumentReference   DocumentType = "reference"
	DocumentOther       DocumentType = "other"
)

// ValidDocumentTypes contains all valid document type values.
var ValidDocumentTypes = map[DocumentType]bool{
	DocumentResume:      true,
	DocumentCoverLetter: true,
	DocumentPortfolio:   true,
	DocumentReference:   true,
	DocumentOther:       true,
}

// IsValid returns true if the document type is a known valid value.
func (dt DocumentType) IsValid() bool {
	return ValidDocumentTypes[dt]
}

// SyncStatus represents the sync state of an event mapping.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// MappingOrigin records which side created an event mapping.
type MappingOrigin string

const (
	OriginInternal MappingOrigin = "internal"
	OriginGoogle   MappingOrigin = "google"
)

// SyncDirection represents the direction of a sync pass.
type SyncDirection string

const (
	DirectionAppToGoogle   SyncDirection = "app_to_google"
	DirectionGoogleToApp   SyncDirection = "google_to_app"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// ValidSyncDirections contains all valid sync direction values.
var ValidSyncDirections = map[SyncDirection]bool{
	DirectionAppToGoogle:   true,
	DirectionGoogleToApp:   true,
	DirectionBidirectional: true,
}

// IsValid returns true if the sync direction is a known valid value.
func (sd SyncDirection) IsValid() bool {
	return ValidSyncDirections[sd]
}

// User represents a user in the system.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Application represents a tracked job application.
type Application struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	CompanyName     string            `json:"company_name"`
	JobTitle        string            `json:"job_title"`
	Description     string            `json:"description"`
	Status          ApplicationStatus `json:"status"`
	Priority        Priority          `json:"priority"`
	ApplicationDate time.Time         `json:"application_date"`
	Deadline        *time.Time        `json:"deadline"`
	SalaryMin       *int              `json:"salary_min"`
	SalaryMax       *int              `json:"salary_max"`
	SalaryCurrency  string            `json:"salary_currency"`
	JobURL          string            `json:"job_url"`
	Location        string            `json:"location"`
	Notes           string            `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Interview represents an interview round for an application.
type Interview struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	ApplicationID   string        `json:"application_id"`
	InterviewType   InterviewType `json:"interview_type"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Location        string        `json:"location"`
	MeetingLink     string        `json:"meeting_link"`
	Status          string        `json:"status"` // scheduled, completed, cancelled, rescheduled
	Outcome         string        `json:"outcome"`
	Notes           string        `json:"notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Document represents document metadata attached to an application.
// The file itself lives in external storage; only the path is recorded.
type Document struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	ApplicationID *string      `json:"application_id"`
	Name          string       `json:"name"`
	Type          DocumentType `json:"type"`
	FilePath      string       `json:"file_path"`
	FileSize      *int64       `json:"file_size"`
	MimeType      string       `json:"mime_type"`
	IsTemplate    bool         `json:"is_template"`
	CreatedAt     time.Time    `json:"created_at"`
}

// CalendarEvent represents a user-created calendar event. Unlike interview
// and deadline events, which are derived from their source records on
// demand, custom events are stored rows with their own lifecycle.
type CalendarEvent struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	ApplicationID  *string    `json:"application_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	EventType      string     `json:"event_type"` // custom, interview_prep, networking, follow_up, meeting, reminder, other
	AllDay         bool       `json:"all_day"`
	Location       string     `json:"location"`
	Notes          string     `json:"notes"`
	Color          string     `json:"color"`
	SyncWithGoogle bool       `json:"sync_with_google"`
	LastGoogleSync *time.Time `json:"last_google_sync"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// GoogleCredential holds the OAuth token pair for a user's Google account.
// A credential without a refresh token is invalid and is rejected at store
// time; the refresh token is retained across access token rotations.
type GoogleCredential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"` // Never include in JSON
	RefreshToken string    `json:"-"` // Never include in JSON
	TokenExpiry  time.Time `json:"token_expiry"`
	Scope        string    `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SyncSettings holds per-user Google Calendar sync configuration.
type SyncSettings struct {
	UserID           string     `json:"user_id"`
	GoogleCalendarID string     `json:"google_calendar_id"`
	SyncEnabled      bool       `json:"sync_enabled"`
	SyncInterviews   bool       `json:"sync_interviews"`
	SyncDeadlines    bool       `json:"sync_deadlines"`
	SyncApplications bool       `json:"sync_applications"`
	SyncFollowUps    bool       `json:"sync_follow_ups"`
	SyncCustomEvents bool       `json:"sync_custom_events"`
	AutoSyncInterval int        `json:"auto_sync_interval"` // minutes, advisory only
	LastSyncAt       *time.Time `json:"last_sync_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EventMapping correlates an internal event identity with an external
// Google Calendar event. Rows with origin=internal are unique per
// (user, app_event_type, app_event_reference_id); rows with origin=google
// are unique per (user, google_event_id).
type EventMapping struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"user_id"`
	AppEventType        string        `json:"app_event_type"`
	AppEventReferenceID string        `json:"app_event_reference_id"`
	AppEventID          *string       `json:"app_event_id"` // set only for custom events
	GoogleCalendarID    string        `json:"google_calendar_id"`
	GoogleEventID       string        `json:"google_event_id"`
	LastSyncedAt        time.Time     `json:"last_synced_at"`
	SyncStatus          SyncStatus    `json:"sync_status"`
	ETag                string        `json:"etag"`
	Origin              MappingOrigin `json:"origin"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// SyncLog represents an append-only audit record for one sync pass.
type SyncLog struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	SyncType        string        `json:"sync_type"`
	Direction       SyncDirection `json:"direction"`
	Status          string        `json:"status"` // success or error
	EventsProcessed int           `json:"events_processed"`
	ErrorsCount     int           `json:"errors_count"`
	Message         string        `json:"message"`
	ErrorDetails    string        `json:"error_details"`
	CompletedAt     time.Time     `json:"completed_at"`
}

package web

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/sync"
)

// sanitizeError returns a user-safe error message without exposing internal details.
// Internal error details are logged but not returned to the client.
func sanitizeError(err error, userMessage string) string {
	if err != nil {
		// Log the full error for debugging (server-side only)
		log.Printf("Error: %s - Details: %v", userMessage, err)
	}
	return userMessage
}

// applicationRequest is the JSON body for creating or updating an application.
type applicationRequest struct {
	CompanyName     string     `json:"company_name" binding:"required"`
	JobTitle        string     `json:"job_title" binding:"required"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	ApplicationDate *time.Time `json:"application_date"`
	Deadline        *time.Time `json:"deadline"`
	SalaryMin       *int       `json:"salary_min"`
	SalaryMax       *int       `json:"salary_max"`
	SalaryCurrency  string     `json:"salary_currency"`
	JobURL          string     `json:"job_url"`
	Location        string     `json:"location"`
	Notes           string     `json:"notes"`
}

// APIListApplications returns all applications for the current user.
func (h *Handlers) APIListApplications(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	apps, err := h.db.GetApplicationsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load applications")})
		return
	}
	if apps == nil {
		apps = []*db.Application{}
	}

	c.JSON(http.StatusOK, apps)
}

// APIGetApplication returns one application owned by the current user.
func (h *Handlers) APIGetApplication(c *gin.Context) {
	app, ok := h.ownedApplication(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app)
}

// APICreateApplication creates an application.
func (h *Handlers) APICreateApplication(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	status := db.ApplicationStatus(req.Status)
	if req.Status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	priority := db.Priority(req.Priority)
	if req.Priority != "" && !priority.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}

	app := &db.Application{
		UserID:         session.UserID,
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		Deadline:       req.Deadline,
		SalaryMin:      req.SalaryMin,
		SalaryMax:      req.SalaryMax,
		SalaryCurrency: req.SalaryCurrency,
		JobURL:         req.JobURL,
		Location:       req.Location,
		Notes:          req.Notes,
	}
	if req.ApplicationDate != nil {
		app.ApplicationDate = *req.ApplicationDate
	} else {
		app.ApplicationDate = time.Now().UTC()
	}

	if err := h.db.CreateApplication(app); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to create application")})
		return
	}

	c.JSON(http.StatusCreated, app)
}

// APIUpdateApplication updates an application.
func (h *Handlers) APIUpdateApplication(c *gin.Context) {
	app, ok := h.ownedApplication(c)
	if !ok {
		return
	}

	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Status != "" {
		status := db.ApplicationStatus(req.Status)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		app.Status = status
	}
	if req.Priority != "" {
		priority := db.Priority(req.Priority)
		if !priority.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		app.Priority = priority
	}

	app.CompanyName = req.CompanyName
	app.JobTitle = req.JobTitle
	app.Description = req.Description
	app.Deadline = req.Deadline
	app.SalaryMin = req.SalaryMin
	app.SalaryMax = req.SalaryMax
	if req.SalaryCurrency != "" {
		app.SalaryCurrency = req.SalaryCurrency
	}
	app.JobURL = req.JobURL
	app.Location = req.Location
	app.Notes = req.Notes
	if req.ApplicationDate != nil {
		app.ApplicationDate = *req.ApplicationDate
	}

	if err := h.db.UpdateApplication(app); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to update application")})
		return
	}

	c.JSON(http.StatusOK, app)
}

// APIDeleteApplication deletes an application and its dependent rows.
func (h *Handlers) APIDeleteApplication(c *gin.Context) {
	app, ok := h.ownedApplication(c)
	if !ok {
		return
	}

	if err := h.db.DeleteApplication(app.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to delete application")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Application deleted"})
}

// ownedApplication loads the application in the :id parameter and verifies
// the current user owns it. On failure it writes the error response and
// returns ok=false.
func (h *Handlers) ownedApplication(c *gin.Context) (*db.Application, bool) {
	session := auth.GetCurrentUser(c)

	app, err := h.db.GetApplicationByID(c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load application")})
		return nil, false
	}
	if app.UserID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}

	return app, true
}

// interviewRequest is the JSON body for creating or updating an interview.
type interviewRequest struct {
	ApplicationID   string    `json:"application_id" binding:"required"`
	InterviewType   string    `json:"interview_type" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	MeetingLink     string    `json:"meeting_link"`
	Status          string    `json:"status"`
	Outcome         string    `json:"outcome"`
	Notes           string    `json:"notes"`
}

// APIListInterviews returns all interviews for the current user.
func (h *Handlers) APIListInterviews(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	interviews, err := h.db.GetInterviewsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load interviews")})
		return
	}
	if interviews == nil {
		interviews = []*db.Interview{}
	}

	c.JSON(http.StatusOK, interviews)
}

// APICreateInterview creates an interview under one of the user's applications.
func (h *Handlers) APICreateInterview(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	var req interviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ivType := db.InterviewType(req.InterviewType)
	if !ivType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interview type"})
		return
	}

	// The parent application must belong to the caller
	app, err := h.db.GetApplicationByID(req.ApplicationID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && app.UserID != session.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load application")})
		return
	}

	iv := &db.Interview{
		UserID:          session.UserID,
		ApplicationID:   req.ApplicationID,
		InterviewType:   ivType,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		Status:          req.Status,
		Outcome:         req.Outcome,
		Notes:           req.Notes,
	}

	if err := h.db.CreateInterview(iv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to create interview")})
		return
	}

	c.JSON(http.StatusCreated, iv)
}

// APIUpdateInterview updates an interview.
func (h *Handlers) APIUpdateInterview(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	iv, err := h.db.GetInterviewByID(c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load interview")})
		return
	}
	if iv.UserID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req interviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ivType := db.InterviewType(req.InterviewType)
	if !ivType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interview type"})
		return
	}

	iv.InterviewType = ivType
	iv.ScheduledAt = req.ScheduledAt
	if req.DurationMinutes > 0 {
		iv.DurationMinutes = req.DurationMinutes
	}
	iv.Location = req.Location
	iv.MeetingLink = req.MeetingLink
	if req.Status != "" {
		iv.Status = req.Status
	}
	iv.Outcome = req.Outcome
	iv.Notes = req.Notes

	if err := h.db.UpdateInterview(iv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to update interview")})
		return
	}

	c.JSON(http.StatusOK, iv)
}

// APIDeleteInterview deletes an interview.
func (h *Handlers) APIDeleteInterview(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	iv, err := h.db.GetInterviewByID(c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load interview")})
		return
	}
	if iv.UserID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.DeleteInterview(iv.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to delete interview")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Interview deleted"})
}

// documentRequest is the JSON body for registering a document. The file
// itself lives in external storage; only its metadata is recorded here.
type documentRequest struct {
	ApplicationID *string `json:"application_id"`
	Name          string  `json:"name" binding:"required"`
	Type          string  `json:"type" binding:"required"`
	FilePath      string  `json:"file_path" binding:"required"`
	FileSize      *int64  `json:"file_size"`
	MimeType      string  `json:"mime_type"`
	IsTemplate    bool    `json:"is_template"`
}

// APIListDocuments returns all documents for the current user.
func (h *Handlers) APIListDocuments(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	docs, err := h.db.GetDocumentsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load documents")})
		return
	}
	if docs == nil {
		docs = []*db.Document{}
	}

	c.JSON(http.StatusOK, docs)
}

// APICreateDocument registers document metadata.
func (h *Handlers) APICreateDocument(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	docType := db.DocumentType(req.Type)
	if !docType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document type"})
		return
	}

	doc := &db.Document{
		UserID:        session.UserID,
		ApplicationID: req.ApplicationID,
		Name:          req.Name,
		Type:          docType,
		FilePath:      req.FilePath,
		FileSize:      req.FileSize,
		MimeType:      req.MimeType,
		IsTemplate:    req.IsTemplate,
	}

	if err := h.db.CreateDocument(doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to create document")})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// APIDeleteDocument deletes a document record.
func (h *Handlers) APIDeleteDocument(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	docs, err := h.db.GetDocumentsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load documents")})
		return
	}

	id := c.Param("id")
	for _, doc := range docs {
		if doc.ID == id {
			if err := h.db.DeleteDocument(id); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to delete document")})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
}

// calendarEventRequest is the JSON body for creating or updating a custom
// calendar event.
type calendarEventRequest struct {
	ApplicationID  *string   `json:"application_id"`
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	EventType      string    `json:"event_type"`
	AllDay         bool      `json:"all_day"`
	Location       string    `json:"location"`
	Notes          string    `json:"notes"`
	Color          string    `json:"color"`
	SyncWithGoogle bool      `json:"sync_with_google"`
}

// APIListCalendarEvents returns the full synthesized calendar for the
// current user: derived interview, deadline, submission and follow-up
// events plus stored custom events.
func (h *Handlers) APIListCalendarEvents(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	apps, err := h.db.GetApplicationsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load applications")})
		return
	}
	interviews, err := h.db.GetInterviewsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load interviews")})
		return
	}
	customEvents, err := h.db.GetCalendarEventsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load calendar events")})
		return
	}

	// The calendar view always shows every category
	allCategories := &db.SyncSettings{
		SyncInterviews:   true,
		SyncDeadlines:    true,
		SyncApplications: true,
		SyncFollowUps:    true,
		SyncCustomEvents: true,
	}

	events := sync.BuildEvents(apps, interviews, customEvents, allCategories, time.Now())

	type feedEvent struct {
		Category    string  `json:"category"`
		ReferenceID string  `json:"reference_id"`
		EventID     *string `json:"event_id,omitempty"`
		Title       string  `json:"title"`
		Description string  `json:"description,omitempty"`
		Location    string  `json:"location,omitempty"`
		Start       string  `json:"start"`
		End         string  `json:"end"`
		Color       string  `json:"color,omitempty"`
		CompanyName string  `json:"company_name,omitempty"`
		Position    string  `json:"position,omitempty"`
		Status      string  `json:"status,omitempty"`
	}

	feed := make([]feedEvent, 0, len(events))
	for _, ev := range events {
		feed = append(feed, feedEvent{
			Category:    ev.Category,
			ReferenceID: ev.ReferenceID,
			EventID:     ev.EventID,
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.Start.Format(time.RFC3339),
			End:         ev.End.Format(time.RFC3339),
			Color:       ev.Color,
			CompanyName: ev.CompanyName,
			Position:    ev.Position,
			Status:      ev.Status,
		})
	}

	c.JSON(http.StatusOK, feed)
}

// APICreateCalendarEvent creates a custom calendar event.
func (h *Handlers) APICreateCalendarEvent(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	var req calendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	ev := &db.CalendarEvent{
		UserID:         session.UserID,
		ApplicationID:  req.ApplicationID,
		Title:          req.Title,
		Description:    req.Description,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		EventType:      req.EventType,
		AllDay:         req.AllDay,
		Location:       req.Location,
		Notes:          req.Notes,
		Color:          req.Color,
		SyncWithGoogle: req.SyncWithGoogle,
	}

	if err := h.db.CreateCalendarEvent(ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to create event")})
		return
	}

	c.JSON(http.StatusCreated, ev)
}

// APIUpdateCalendarEvent updates a custom calendar event.
func (h *Handlers) APIUpdateCalendarEvent(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	ev, err := h.db.GetCalendarEventByID(c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load event")})
		return
	}
	if ev.UserID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req calendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	ev.ApplicationID = req.ApplicationID
	ev.Title = req.Title
	ev.Description = req.Description
	ev.StartTime = req.StartTime
	ev.EndTime = req.EndTime
	if req.EventType != "" {
		ev.EventType = req.EventType
	}
	ev.AllDay = req.AllDay
	ev.Location = req.Location
	ev.Notes = req.Notes
	ev.Color = req.Color
	ev.SyncWithGoogle = req.SyncWithGoogle

	if err := h.db.UpdateCalendarEvent(ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to update event")})
		return
	}

	c.JSON(http.StatusOK, ev)
}

// APIDeleteCalendarEvent deletes a custom calendar event.
func (h *Handlers) APIDeleteCalendarEvent(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	ev, err := h.db.GetCalendarEventByID(c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load event")})
		return
	}
	if ev.UserID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.db.DeleteCalendarEvent(ev.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to delete event")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}

// APIDashboardStats aggregates headline numbers for the dashboard.
func (h *Handlers) APIDashboardStats(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	apps, err := h.db.GetApplicationsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load applications")})
		return
	}
	interviews, err := h.db.GetInterviewsByUserID(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load interviews")})
		return
	}

	byStatus := make(map[string]int)
	active := 0
	for _, app := range apps {
		byStatus[string(app.Status)]++
		if app.Status != db.StatusRejected && app.Status != db.StatusWithdrawn {
			active++
		}
	}

	now := time.Now()
	upcomingInterviews := 0
	for _, iv := range interviews {
		if iv.Status == "scheduled" && iv.ScheduledAt.After(now) {
			upcomingInterviews++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_applications":  len(apps),
		"active_applications": active,
		"by_status":           byStatus,
		"total_interviews":    len(interviews),
		"upcoming_interviews": upcomingInterviews,
	})
}

// APISyncHistory returns recent sync log entries.
func (h *Handlers) APISyncHistory(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	logs, err := h.db.GetSyncLogs(session.UserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load sync history")})
		return
	}
	if logs == nil {
		logs = []*db.SyncLog{}
	}

	c.JSON(http.StatusOK, logs)
}

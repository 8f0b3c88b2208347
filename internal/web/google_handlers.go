package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
)

// APIGoogleConnect begins the Google Calendar OAuth flow. The authenticated
// user id rides along as the state parameter and is checked on callback.
func (h *Handlers) APIGoogleConnect(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	authURL := h.tokens.AuthCodeURL(session.UserID)
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// GoogleCallback completes the OAuth flow: exchanges the code, persists
// the credential, discovers the primary calendar and seeds sync settings.
func (h *Handlers) GoogleCallback(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	// The state must be the authenticated user's id
	if c.Query("state") != session.UserID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "State mismatch"})
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		c.Redirect(http.StatusFound, "/settings?google=denied")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	if err := h.tokens.Exchange(c.Request.Context(), session.UserID, code); err != nil {
		if errors.Is(err, db.ErrInvalidCredential) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google did not issue a refresh token"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "Failed to complete Google authorization")})
		return
	}

	// Default the target calendar to the user's primary one
	primary, err := h.gateway.PrimaryCalendar(c.Request.Context(), session.UserID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "Failed to discover primary calendar")})
		return
	}

	settings := &db.SyncSettings{
		UserID:           session.UserID,
		GoogleCalendarID: primary.ID,
		SyncEnabled:      true,
		SyncInterviews:   true,
		SyncDeadlines:    true,
		SyncApplications: false,
		SyncFollowUps:    true,
		SyncCustomEvents: true,
	}
	if err := h.db.UpsertSyncSettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to create sync settings")})
		return
	}

	c.Redirect(http.StatusFound, "/settings?google=connected")
}

// APIGoogleDisconnect removes the credential, disables sync settings and
// purges all event mappings.
func (h *Handlers) APIGoogleDisconnect(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	if err := h.tokens.Remove(session.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to remove credential")})
		return
	}

	// Settings are disabled, not deleted; the user's toggle choices survive
	// a reconnect.
	if err := h.db.SetSyncEnabled(session.UserID, false); err != nil && !errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to disable sync settings")})
		return
	}

	purged, err := h.db.DeleteMappingsForUser(session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to delete event mappings")})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Google Calendar disconnected",
		"mappings_removed": purged,
	})
}

// APIGoogleStatus reports whether the user is connected and their settings.
func (h *Handlers) APIGoogleStatus(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	connected, err := h.tokens.IsConnected(c.Request.Context(), session.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to check connection")})
		return
	}

	var settings *db.SyncSettings
	if connected {
		settings, err = h.db.GetSyncSettings(session.UserID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load sync settings")})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"connected": connected,
		"settings":  settings,
	})
}

// APIGoogleCalendars lists the calendars the user can sync into.
func (h *Handlers) APIGoogleCalendars(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	calendars, err := h.gateway.ListCalendars(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, google.ErrNotConnected) || errors.Is(err, google.ErrInvalidGrant) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Google account not connected"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": sanitizeError(err, "Failed to list calendars")})
		return
	}

	c.JSON(http.StatusOK, calendars)
}

// syncSettingsRequest is the JSON body for updating sync settings.
type syncSettingsRequest struct {
	GoogleCalendarID *string `json:"google_calendar_id"`
	SyncEnabled      *bool   `json:"sync_enabled"`
	SyncInterviews   *bool   `json:"sync_interviews"`
	SyncDeadlines    *bool   `json:"sync_deadlines"`
	SyncApplications *bool   `json:"sync_applications"`
	SyncFollowUps    *bool   `json:"sync_follow_ups"`
	SyncCustomEvents *bool   `json:"sync_custom_events"`
	AutoSyncInterval *int    `json:"auto_sync_interval"`
}

// APIUpdateSyncSettings patches sync settings field by field.
func (h *Handlers) APIUpdateSyncSettings(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	settings, err := h.db.GetSyncSettings(session.UserID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connect Google Calendar first"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to load sync settings")})
		return
	}

	var req syncSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.GoogleCalendarID != nil && *req.GoogleCalendarID != "" {
		settings.GoogleCalendarID = *req.GoogleCalendarID
	}
	if req.SyncEnabled != nil {
		settings.SyncEnabled = *req.SyncEnabled
	}
	if req.SyncInterviews != nil {
		settings.SyncInterviews = *req.SyncInterviews
	}
	if req.SyncDeadlines != nil {
		settings.SyncDeadlines = *req.SyncDeadlines
	}
	if req.SyncApplications != nil {
		settings.SyncApplications = *req.SyncApplications
	}
	if req.SyncFollowUps != nil {
		settings.SyncFollowUps = *req.SyncFollowUps
	}
	if req.SyncCustomEvents != nil {
		settings.SyncCustomEvents = *req.SyncCustomEvents
	}
	if req.AutoSyncInterval != nil {
		settings.AutoSyncInterval = h.cfg.ClampSyncInterval(*req.AutoSyncInterval)
	}

	if err := h.db.UpsertSyncSettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "Failed to update sync settings")})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// syncRequest is the JSON body for triggering a sync.
type syncRequest struct {
	Direction string `json:"direction"`
}

// APIGoogleSync runs a sync pass in the requested direction. The default
// is bidirectional.
func (h *Handlers) APIGoogleSync(c *gin.Context) {
	session := auth.GetCurrentUser(c)

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	direction := db.DirectionBidirectional
	if req.Direction != "" {
		direction = db.SyncDirection(req.Direction)
		if !direction.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sync direction"})
			return
		}
	}

	result := h.engine.RunSync(c.Request.Context(), session.UserID, direction)
	c.JSON(http.StatusOK, result)
}

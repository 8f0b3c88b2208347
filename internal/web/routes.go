package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
)

const webDistPath = "web/dist"

// SetupRoutes registers every route group on the router.
func SetupRoutes(r *gin.Engine, h *Handlers, sm *auth.SessionManager) {
	// Probes bypass auth and rate limiting.
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.Liveness)
	r.GET("/ready", h.Readiness)

	// Login flow, throttled hard against brute force.
	authGroup := r.Group("/auth", RateLimiter(5, 10))
	{
		authGroup.GET("/login", h.Login)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/callback", h.Callback)
		authGroup.POST("/logout", h.Logout)
	}

	apiLimit := RateLimiter(30, 60)

	// Session introspection works with or without a session.
	publicAPI := r.Group("/api", apiLimit, auth.OptionalAuth(sm))
	{
		publicAPI.GET("/auth/status", h.APIAuthStatus)
		publicAPI.POST("/auth/logout", h.APILogout)
	}

	// Everything below needs a session. Origin and Content-Type checks
	// back up the SameSite cookie.
	api := r.Group("/api", apiLimit, auth.RequireAuthAPI(sm), ValidateOrigin(), RequireJSONContentType())
	{
		api.GET("/dashboard/stats", h.APIDashboardStats)
		api.GET("/dashboard/sync-history", h.APISyncHistory)

		api.GET("/applications", h.APIListApplications)
		api.POST("/applications", h.APICreateApplication)
		api.GET("/applications/:id", h.APIGetApplication)
		api.PUT("/applications/:id", h.APIUpdateApplication)
		api.DELETE("/applications/:id", h.APIDeleteApplication)

		api.GET("/interviews", h.APIListInterviews)
		api.POST("/interviews", h.APICreateInterview)
		api.PUT("/interviews/:id", h.APIUpdateInterview)
		api.DELETE("/interviews/:id", h.APIDeleteInterview)

		api.GET("/documents", h.APIListDocuments)
		api.POST("/documents", h.APICreateDocument)
		api.DELETE("/documents/:id", h.APIDeleteDocument)

		api.GET("/events", h.APIListCalendarEvents)
		api.POST("/events", h.APICreateCalendarEvent)
		api.PUT("/events/:id", h.APIUpdateCalendarEvent)
		api.DELETE("/events/:id", h.APIDeleteCalendarEvent)

		api.GET("/google/status", h.APIGoogleStatus)
		api.GET("/google/callback", h.GoogleCallback)
		api.PATCH("/google/settings", h.APIUpdateSyncSettings)
	}

	// Each of these costs network round-trips to Google, so the budget is
	// much tighter.
	googleAPI := r.Group("/api", RateLimiter(2, 5), auth.RequireAuthAPI(sm), ValidateOrigin(), RequireJSONContentType())
	{
		googleAPI.POST("/google/connect", h.APIGoogleConnect)
		googleAPI.POST("/google/disconnect", h.APIGoogleDisconnect)
		googleAPI.GET("/google/calendars", h.APIGoogleCalendars)
		googleAPI.POST("/google/sync", h.APIGoogleSync)
	}

	setupFrontend(r)
}

// setupFrontend serves the built React bundle when it exists, with an SPA
// fallback to index.html for client-side routes.
func setupFrontend(r *gin.Engine) {
	if _, err := os.Stat(webDistPath); os.IsNotExist(err) {
		return
	}

	r.Static("/assets", filepath.Join(webDistPath, "assets"))

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/auth") ||
			path == "/health" || path == "/healthz" || path == "/ready" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(filepath.Join(webDistPath, "index.html"))
	})
}

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asesson/job-Application-Tracker/internal/auth"
	"github.com/asesson/job-Application-Tracker/internal/config"
	"github.com/asesson/job-Application-Tracker/internal/db"
	"github.com/asesson/job-Application-Tracker/internal/google"
	"github.com/asesson/job-Application-Tracker/internal/health"
	"github.com/asesson/job-Application-Tracker/internal/sync"
)

// Handlers bundles the HTTP handlers with their shared dependencies.
type Handlers struct {
	cfg     *config.Config
	db      *db.DB
	oidc    *auth.OIDCProvider
	session *auth.SessionManager
	tokens  *google.TokenStore
	gateway *google.Gateway
	engine  *sync.Engine
	health  *health.Checker
}

// NewHandlers wires the handler set used by SetupRoutes.
func NewHandlers(
	cfg *config.Config,
	database *db.DB,
	oidc *auth.OIDCProvider,
	session *auth.SessionManager,
	tokens *google.TokenStore,
	gateway *google.Gateway,
	engine *sync.Engine,
	healthChecker *health.Checker,
) *Handlers {
	return &Handlers{
		cfg:     cfg,
		db:      database,
		oidc:    oidc,
		session: session,
		tokens:  tokens,
		gateway: gateway,
		engine:  engine,
		health:  healthChecker,
	}
}

// HealthCheck returns a full health report.
func (h *Handlers) HealthCheck(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Liveness returns a simple liveness check.
func (h *Handlers) Liveness(c *gin.Context) {
	report := h.health.Liveness()
	c.JSON(http.StatusOK, report)
}

// Readiness checks all dependencies.
func (h *Handlers) Readiness(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	if report.Status == health.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Login initiates OIDC authentication.
func (h *Handlers) Login(c *gin.Context) {
	state, err := auth.GenerateState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state"})
		return
	}

	if err := h.session.SetOAuthState(c.Writer, c.Request, state); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save state"})
		return
	}

	authURL := h.oidc.AuthCodeURL(state)
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the OIDC login. The state cookie is single-use, so a
// replayed callback fails the comparison.
func (h *Handlers) Callback(c *gin.Context) {
	state := c.Query("state")
	savedState, err := h.session.GetOAuthState(c.Writer, c.Request)
	if err != nil || state != savedState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter"})
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authentication failed: " + errParam})
		return
	}

	token, err := h.oidc.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to exchange code"})
		return
	}

	claims, err := h.oidc.VerifyIDToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to verify token"})
		return
	}

	user, err := h.db.GetOrCreateUser(claims.Email, claims.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	sessionData := &auth.SessionData{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	if err := h.session.Set(c.Writer, c.Request, sessionData); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	// Honor the pre-login destination only when it stays on this site.
	redirectURL := "/"
	if cookie, err := c.Cookie("redirect_after_login"); err == nil && cookie != "" {
		if IsSafeRedirectURL(cookie) {
			redirectURL = cookie
		}
		c.SetCookie("redirect_after_login", "", -1, "/", "", h.cfg.IsProduction(), true)
	}

	c.Redirect(http.StatusFound, redirectURL)
}

// Logout clears the session.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.session.Clear(c.Writer, c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	c.Redirect(http.StatusFound, "/auth/login")
}

// APIAuthStatus returns the current authentication state.
func (h *Handlers) APIAuthStatus(c *gin.Context) {
	session := auth.GetCurrentUser(c)
	if session == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user": gin.H{
			"id":    session.UserID,
			"email": session.Email,
			"name":  session.Name,
		},
	})
}

// APILogout clears the session for API clients.
func (h *Handlers) APILogout(c *gin.Context) {
	if err := h.session.Clear(c.Writer, c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

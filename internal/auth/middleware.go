package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeySession is the gin context key holding the resolved *SessionData.
const ContextKeySession = "session"

// RequireAuth gates browser routes. Anonymous requests are bounced to the
// login page with a cookie remembering where they were headed.
func RequireAuth(sm *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sm.Get(c.Request)
		if err != nil {
			secure := sm.store.Options != nil && sm.store.Options.Secure
			c.SetCookie("redirect_after_login", c.Request.URL.String(), 600, "/", "", secure, true)
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		c.Set(ContextKeySession, session)
		c.Next()
	}
}

// RequireAuthAPI gates JSON routes. JSON clients get a 401 rather than a
// redirect.
func RequireAuthAPI(sm *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sm.Get(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ContextKeySession, session)
		c.Next()
	}
}

// OptionalAuth loads the session when one exists and continues either way.
func OptionalAuth(sm *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session, err := sm.Get(c.Request); err == nil {
			c.Set(ContextKeySession, session)
		}
		c.Next()
	}
}

// GetCurrentUser returns the session stored by the auth middleware, or nil
// when the request is anonymous.
func GetCurrentUser(c *gin.Context) *SessionData {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil
	}
	data, ok := v.(*SessionData)
	if !ok {
		return nil
	}
	return data
}

// ValidateCSRF checks the token on state-changing requests. Safe methods
// pass through untouched.
func ValidateCSRF(sm *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		session, err := sm.Get(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session required"})
			return
		}

		token := c.PostForm("csrf_token")
		if token == "" {
			token = c.GetHeader("X-CSRF-Token")
		}
		if token == "" || token != session.CSRFToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
			return
		}

		c.Next()
	}
}

package web

import (
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SecurityHeaders sets the standard response headers on every route.
// HSTS is only emitted once the request is actually on HTTPS.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		h.Set("Content-Security-Policy", strings.Join([]string{
			"default-src 'self'",
			"script-src 'self' 'unsafe-inline'",
			"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
			"img-src 'self' data:",
			"font-src 'self' https://fonts.gstatic.com",
			"connect-src 'self'",
			"form-action 'self'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
		}, "; "))

		c.Next()
	}
}

// RateLimiter applies a process-wide token bucket to every request.
func RateLimiter(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// RequestLogger writes one line per request. Query strings and bodies are
// never logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method, path := c.Request.Method, c.Request.URL.Path

		c.Next()

		log.Printf("%s %s %d %v", method, path, c.Writer.Status(), time.Since(start))
	}
}

// RequireJSONContentType rejects body-carrying requests whose Content-Type
// is set to something other than JSON. An absent Content-Type passes.
func RequireJSONContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := c.GetHeader("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": "Content-Type must be application/json",
				})
				return
			}
		}
		c.Next()
	}
}

// ValidateOrigin checks the Origin header on state-changing requests,
// falling back to the Referer's origin when the browser omitted it.
func ValidateOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = refererOrigin(c.GetHeader("Referer"))
		}
		if origin == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Missing Origin header",
			})
			return
		}

		for _, allowed := range allowedOrigins() {
			if origin == allowed {
				c.Next()
				return
			}
		}

		log.Printf("CSRF: rejected request from origin %s", origin)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Invalid origin",
		})
	}
}

// refererOrigin reduces a Referer URL to its scheme and host.
func refererOrigin(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// allowedOrigins reads ALLOWED_ORIGINS (comma separated) and falls back to
// the local development origins when it is unset.
func allowedOrigins() []string {
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		var origins []string
		for _, o := range strings.Split(env, ",") {
			origins = append(origins, strings.TrimSpace(o))
		}
		return origins
	}
	return []string{
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}

// IsSafeRedirectURL reports whether a post-login redirect target stays on
// this site. Only plain relative paths qualify.
func IsSafeRedirectURL(target string) bool {
	switch {
	case target == "":
		return false
	case !strings.HasPrefix(target, "/"):
		return false
	case strings.HasPrefix(target, "//"):
		return false
	case strings.Contains(strings.ToLower(target), "%2f%2f"):
		return false
	case strings.Contains(target, `\`):
		return false
	}
	return true
}

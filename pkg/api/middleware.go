package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

const (
	ctxTenantID = "tenant_id"
	ctxUserID   = "user_id"
)

// identity extracts (tenant_id, user_id) from oauth2-proxy-style
// forwarded headers. A missing tenant id is a hard failure: every
// operation is tenant-scoped (spec.md §6 "refuses operations whose
// tenant_id doesn't match the caller").
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			writeError(c, errMissingTenant)
			c.Abort()
			return
		}

		userID := c.GetHeader("X-Forwarded-User")
		if userID == "" {
			userID = c.GetHeader("X-Forwarded-Email")
		}
		if userID == "" {
			userID = "api-client"
		}

		c.Set(ctxTenantID, tenantID)
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string { return c.GetString(ctxTenantID) }
func userID(c *gin.Context) string   { return c.GetString(ctxUserID) }

package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DevUser sets a firebase uid in context from X-User-Id without verifying
// anything. It falls back to "demo-user" when the header is missing.
// Use this ONLY for development/testing.
func DevUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			uid = "demo-user"
		}

		c.Set(CtxFirebaseUID, uid)
		if name := strings.TrimSpace(c.GetHeader("X-User-Name")); name != "" {
			c.Set(CtxUserName, name)
		}

		c.Next()
	}
}

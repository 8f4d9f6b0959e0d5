package middleware

import (
	"github.com/gin-gonic/gin"
)

// UserIdHeaders are checked in order; the first non-empty one wins.
var UserIdHeaders = []string{"X-User-Id", "X-Mailsync-User-Id"}

const UserIdContextKey = "UserId"

func UserIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := ""
		for _, header := range UserIdHeaders {
			if value := c.GetHeader(header); value != "" {
				userId = value
				break
			}
		}

		// Store in gin context for later use
		c.Set(UserIdContextKey, userId)
		c.Next()
	}
}

// GetUserId reads the caller identity placed by UserIdMiddleware.
func GetUserId(c *gin.Context) string {
	return c.GetString(UserIdContextKey)
}

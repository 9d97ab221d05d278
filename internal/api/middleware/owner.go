package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OwnerHeader carries the caller's owner identity. Authentication itself is
// an external collaborator; by the time a request reaches this service the
// header is trusted.
const OwnerHeader = "X-Owner-ID"

const ownerContextKey = "owner_id"

// RequireOwner rejects requests without an owner identity and stores the
// owner id in the Gin context for handlers.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader(OwnerHeader)
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing " + OwnerHeader + " header",
			})
			return
		}
		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

// OwnerID returns the owner id set by RequireOwner.
// Parameters:
//   - c: Gin request context.
// Returns:
//   - string: owner id, empty if RequireOwner did not run.
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerContextKey)
}

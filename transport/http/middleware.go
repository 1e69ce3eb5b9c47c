package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfleet/fleetd/adapters/api"
	"github.com/openfleet/fleetd/ports"
)

// tokenTTL bounds how long a captured bearer token is kept.
const tokenTTL = 12 * time.Hour

// CaptureToken requires a bearer Authorization header and stashes it in
// the store, where the backend client's token source picks it up for
// outbound calls on the operator's behalf.
func CaptureToken(store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if err := store.Set(c.Request.Context(), api.StoreTokenKey, token, tokenTTL); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to record session token"})
			return
		}

		c.Next()
	}
}

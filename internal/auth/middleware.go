package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// contextUserID is the gin context key holding the authenticated user id
const contextUserID = "user_id"

// OptionalBearer authenticates requests that carry an access token and lets
// anonymous requests through. A present but invalid token is rejected.
func OptionalBearer(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authorization header must use the Bearer scheme"})
			return
		}

		claims, err := issuer.Parse(strings.TrimSpace(header[7:]), TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or nil for anonymous requests
func UserID(c *gin.Context) *int64 {
	v, ok := c.Get(contextUserID)
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok {
		return nil
	}
	return &id
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/pkg/response"
)

const (
	// ContextUser is the key for the authenticated *models.User in gin context.
	ContextUser = "user"
)

// UserLookup resolves an access token to a user. Returns (nil, nil) for
// unknown tokens.
type UserLookup interface {
	GetByAccessToken(ctx context.Context, token string) (*models.User, error)
}

// AccessToken returns a middleware that validates the X-Access-Token header
// against the user store and sets the caller in context.
func AccessToken(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Access-Token")
		if token == "" {
			response.Unauthorized(c, "missing access token")
			c.Abort()
			return
		}
		user, err := users.GetByAccessToken(c.Request.Context(), token)
		if err != nil {
			response.Internal(c, "failed to validate access token")
			c.Abort()
			return
		}
		if user == nil {
			response.Unauthorized(c, "invalid access token")
			c.Abort()
			return
		}
		c.Set(ContextUser, user)
		c.Next()
	}
}

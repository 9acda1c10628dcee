package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"eventhub/internal/models"
	"eventhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	CheckUserKey = "user"
	TokenKey     = "session_token"
	TokenHeader  = "X-Authorization"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// LoadUser resolves the session token header, if any, and stores the user in the context.
// Requests with a bad token continue anonymously; AuthRequired rejects them where it matters.
// A store failure ends the request with a 500.
func LoadUser(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token == "" {
			c.Next()
			return
		}
		c.Set(TokenKey, token)

		user, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(CheckUserKey, user)
		case errors.Is(err, services.ErrUnauthorized):
		default:
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("authenticate session token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error_message": "Server Error"})
			return
		}
		c.Next()
	}
}

// AuthRequired rejects requests without an authenticated user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error_message": services.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CurrentUserID returns 0 for anonymous requests.
func CurrentUserID(c *gin.Context) uint {
	if user, ok := CurrentUser(c); ok {
		return user.ID
	}
	return 0
}

func SessionToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

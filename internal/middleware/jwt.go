package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
)

// ContextIdentityKey is the gin context key storing the request principal.
const ContextIdentityKey = "identity"

const contextBearerKey = "identity.bearer"

// TokenValidator verifies API access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Authenticate resolves the principal from a bearer token or the session cookie. It never blocks;
// RequireLogin and RequireRole decide what an anonymous request may reach.
func Authenticate(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok && tokens != nil {
			if claims, err := tokens.ValidateToken(token); err == nil {
				identity := claims.Identity()
				c.Set(ContextIdentityKey, &identity)
				c.Set(contextBearerKey, true)
			}
			c.Next()
			return
		}

		if identity, ok := session.Identity(c); ok {
			c.Set(ContextIdentityKey, identity)
		}
		c.Next()
	}
}

// CurrentIdentity returns the principal resolved by Authenticate.
func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	value, ok := c.Get(ContextIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok && identity != nil
}

// Actor describes the caller for audit records.
func Actor(c *gin.Context) models.Actor {
	actor := models.Actor{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if identity, ok := CurrentIdentity(c); ok {
		actor.UserID = identity.UserID
		actor.Role = identity.Role
	}
	return actor
}

func viaBearer(c *gin.Context) bool {
	return c.GetBool(contextBearerKey)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

// Mode selects how a guard reports a refused request.
type Mode int

const (
	// Page guards redirect with a flash message.
	Page Mode = iota
	// API guards answer with a JSON error envelope.
	API
)

// Redirect targets and messages used by page guards.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"

	MessageLoginRequired = "Please sign in to continue."
	MessageAccessDenied  = "You do not have permission to open that page."
)

// RequireLogin refuses anonymous requests.
func RequireLogin(mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); ok {
			c.Next()
			return
		}
		refuseAnonymous(c, mode)
	}
}

// RequireRole refuses anonymous requests and principals holding none of roles.
func RequireRole(mode Mode, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			refuseAnonymous(c, mode)
			return
		}
		if identity.HasRole(roles...) {
			c.Next()
			return
		}
		if mode == API {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		_ = session.Flash(c).Push(session.FlashError, MessageAccessDenied)
		c.Redirect(http.StatusFound, DashboardPath)
		c.Abort()
	}
}

// RequireGuest sends signed-in users away from the login and registration pages.
func RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); ok {
			c.Redirect(http.StatusFound, DashboardPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

func refuseAnonymous(c *gin.Context, mode Mode) {
	if mode == API {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	target := LoginPath
	if c.Request.Method == http.MethodGet {
		target += "?" + url.Values{"next": {c.Request.URL.RequestURI()}}.Encode()
	}
	_ = session.Flash(c).Push(session.FlashInfo, MessageLoginRequired)
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

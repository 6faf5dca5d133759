package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

// MessageFormExpired is flashed when a page form fails the CSRF check.
const MessageFormExpired = "Your form expired. Please try again."

// CSRF rejects unsafe requests whose csrf_token field or X-CSRF-Token header does not match the
// session token. Bearer authenticated API calls carry no cookie and are exempt. Page mode sends
// the browser back to the form it came from.
func CSRF(mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if viaBearer(c) {
			c.Next()
			return
		}
		token := c.GetHeader(session.CSRFHeader)
		if token == "" {
			token = c.PostForm(session.CSRFField)
		}
		if session.ValidCSRF(c, token) {
			c.Next()
			return
		}
		if mode == API {
			response.Error(c, appErrors.ErrCSRFMismatch)
			return
		}
		_ = session.Flash(c).Push(session.FlashError, MessageFormExpired)
		c.Redirect(http.StatusFound, refererPath(c.Request))
		c.Abort()
	}
}

// refererPath returns the same-host path of the Referer header, or "/".
func refererPath(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || ref.Path[0] != '/' {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if len(ref.Path) > 1 && ref.Path[1] == '/' {
		return "/"
	}
	return (&url.URL{Path: ref.Path, RawQuery: ref.RawQuery}).RequestURI()
}

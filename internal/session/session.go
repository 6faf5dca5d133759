// Package session keeps the signed-in identity, the CSRF token and one-shot flash messages in a
// signed cookie.
package session

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/config"
)

const (
	keyIdentity = "identity"
	keyCSRF     = "csrf_token"
)

// CSRFField is the form field and CSRFHeader the header carrying the CSRF token.
const (
	CSRFField  = "csrf_token"
	CSRFHeader = "X-CSRF-Token"
)

// Middleware installs the cookie backed session store.
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	name := cfg.CookieName
	if name == "" {
		name = "timetable_session"
	}
	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(name, store)
}

// SignIn stores identity and rotates the CSRF token.
func SignIn(c *gin.Context, identity models.Identity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	s := sessions.Default(c)
	s.Clear()
	s.Set(keyIdentity, string(raw))
	s.Set(keyCSRF, uuid.NewString())
	return s.Save()
}

// SignOut drops the identity and every other session value.
func SignOut(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}

// Identity returns the signed-in principal, if any.
func Identity(c *gin.Context) (*models.Identity, bool) {
	raw, ok := sessions.Default(c).Get(keyIdentity).(string)
	if !ok || raw == "" {
		return nil, false
	}
	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.UserID == "" {
		return nil, false
	}
	return &identity, true
}

// CSRFToken returns the session CSRF token, creating one on first use.
func CSRFToken(c *gin.Context) string {
	s := sessions.Default(c)
	if token, ok := s.Get(keyCSRF).(string); ok && token != "" {
		return token
	}
	token := uuid.NewString()
	s.Set(keyCSRF, token)
	_ = s.Save()
	return token
}

// ValidCSRF compares token with the session CSRF token in constant time.
func ValidCSRF(c *gin.Context, token string) bool {
	expected, ok := sessions.Default(c).Get(keyCSRF).(string)
	if !ok || expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

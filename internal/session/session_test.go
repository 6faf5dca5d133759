package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/config"
)

type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func newBrowser(t *testing.T) *browser {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(config.SessionConfig{CookieName: "test_session", Secret: "0123456789abcdef0123456789abcdef", MaxAge: time.Hour}))
	r.POST("/signin", func(c *gin.Context) {
		require.NoError(t, SignIn(c, models.Identity{UserID: "u1", Email: "ada@uni.test", Role: models.RoleAdmin}))
		c.String(http.StatusOK, CSRFToken(c))
	})
	r.POST("/signout", func(c *gin.Context) {
		require.NoError(t, SignOut(c))
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.String(http.StatusOK, identity.UserID+"|"+string(identity.Role))
	})
	r.GET("/csrf", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	r.POST("/check", func(c *gin.Context) {
		if ValidCSRF(c, c.PostForm(CSRFField)) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusForbidden)
	})
	r.POST("/flash", func(c *gin.Context) {
		require.NoError(t, Flash(c).Push(FlashSuccess, "Saved"))
		require.NoError(t, Flash(c).Push(FlashError, "Then failed"))
		c.Redirect(http.StatusFound, "/flash")
	})
	r.GET("/flash", func(c *gin.Context) {
		var parts []string
		for _, m := range Flash(c).Pop() {
			parts = append(parts, m.Kind+":"+m.Text)
		}
		c.String(http.StatusOK, strings.Join(parts, ","))
	})
	return &browser{t: t, router: r}
}

func (b *browser) do(method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	for _, set := range rec.Result().Cookies() {
		b.keep(set)
	}
	return rec
}

// keep mimics a browser cookie jar: the last Set-Cookie for a name wins.
func (b *browser) keep(cookie *http.Cookie) {
	for i, existing := range b.cookies {
		if existing.Name == cookie.Name {
			b.cookies[i] = cookie
			return
		}
	}
	b.cookies = append(b.cookies, cookie)
}

func TestIdentityRoundTrip(t *testing.T) {
	b := newBrowser(t)

	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/me", "").Code)

	b.do(http.MethodPost, "/signin", "")
	rec := b.do(http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|ADMIN", rec.Body.String())

	b.do(http.MethodPost, "/signout", "")
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/me", "").Code)
}

func TestFlashesAreReadOnce(t *testing.T) {
	b := newBrowser(t)

	rec := b.do(http.MethodPost, "/flash", "")
	require.Equal(t, http.StatusFound, rec.Code)

	assert.Equal(t, "success:Saved,error:Then failed", b.do(http.MethodGet, "/flash", "").Body.String())
	assert.Empty(t, b.do(http.MethodGet, "/flash", "").Body.String())
}

func TestCSRFTokenIsStableAndChecked(t *testing.T) {
	b := newBrowser(t)

	token := b.do(http.MethodGet, "/csrf", "").Body.String()
	require.NotEmpty(t, token)
	assert.Equal(t, token, b.do(http.MethodGet, "/csrf", "").Body.String())

	assert.Equal(t, http.StatusOK, b.do(http.MethodPost, "/check", CSRFField+"="+token).Code)
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodPost, "/check", CSRFField+"=forged").Code)

	rotated := b.do(http.MethodPost, "/signin", "").Body.String()
	assert.NotEqual(t, token, rotated)
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodPost, "/check", CSRFField+"="+token).Code)
}

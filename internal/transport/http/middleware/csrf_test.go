package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	resp "takas-go/internal/transport/http/response"
)

func csrfEngine() *gin.Engine {
	r := gin.New()
	r.Use(CSRF(Cookies{}, zap.NewNop()))
	r.GET("/page", func(c *gin.Context) { c.String(http.StatusOK, "page") })
	r.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "done") })
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) resp.Resp {
	t.Helper()
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCSRFIssuesCookieOnSafeMethod(t *testing.T) {
	w := get(csrfEngine(), "/page")
	require.Equal(t, http.StatusOK, w.Code)
	c := setCookies(w)[CSRFCookie]
	require.NotNil(t, c)
	assert.Len(t, c.Value, 64)
	assert.False(t, c.HttpOnly)

	// 已有 cookie 不重发
	w = get(csrfEngine(), "/page", c)
	assert.NotContains(t, setCookies(w), CSRFCookie)
}

func TestCSRFRejectsMismatch(t *testing.T) {
	r := csrfEngine()
	tok := &http.Cookie{Name: CSRFCookie, Value: "abc123"}

	cases := map[string]func(*http.Request){
		"no cookie":    func(req *http.Request) { req.Header.Set(CSRFHeader, "abc123") },
		"no header":    func(req *http.Request) { req.AddCookie(tok) },
		"wrong header": func(req *http.Request) { req.AddCookie(tok); req.Header.Set(CSRFHeader, "abc124") },
	}
	for name, prep := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", nil)
			req.Header.Set("Accept-Language", "en")
			prep(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			out := decode(t, w)
			assert.Equal(t, resp.CodeForbidden, out.Code)
			assert.Equal(t, "csrf token mismatch", out.Msg)
		})
	}
}

func TestCSRFAcceptsHeaderOrFormField(t *testing.T) {
	r := csrfEngine()
	tok := &http.Cookie{Name: CSRFCookie, Value: "abc123"}

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(tok)
	req.Header.Set(CSRFHeader, "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "done", w.Body.String())

	form := url.Values{"_csrf": {"abc123"}}
	req = httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "done", w.Body.String())
}

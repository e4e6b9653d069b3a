package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	resp "takas-go/internal/transport/http/response"
)

const (
	CSRFCookie    = "takas_csrf"
	CSRFHeader    = "X-CSRF-Token"
	csrfFormField = "_csrf"
)

// CSRF 双提交校验：安全方法下发 cookie（前端可读），其余方法要求 header 或表单字段与 cookie 一致
func CSRF(ck Cookies, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if v, err := c.Cookie(CSRFCookie); err != nil || v == "" {
				tok, err := newCSRFToken()
				if err == nil {
					http.SetCookie(c.Writer, &http.Cookie{
						Name:     CSRFCookie,
						Value:    tok,
						Path:     "/",
						Domain:   ck.Domain,
						Secure:   ck.Secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}
			c.Next()
			return
		}
		cookie, err := c.Cookie(CSRFCookie)
		sent := c.GetHeader(CSRFHeader)
		if sent == "" {
			sent = c.PostForm(csrfFormField)
		}
		if err != nil || cookie == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(sent)) != 1 {
			l.Warn("csrf validation failed", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path))
			abort(c, resp.CodeForbidden, "csrf token mismatch")
			return
		}
		c.Next()
	}
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

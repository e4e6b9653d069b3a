package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"takas-go/internal/domain"
	"takas-go/internal/feature/guard"
	"takas-go/internal/service"
)

const (
	AccessCookie  = "takas_at"
	RefreshCookie = "takas_rt"
	keyIdentity   = "identity"
)

type SessionResolver interface {
	Authenticate(accessToken string) (*domain.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
}

// Cookies 会话 cookie 的写法；都是 HttpOnly + SameSite=Lax
type Cookies struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Write 写在 c.Writer 上，随后的重定向响应也会带上
func (k Cookies) Write(c *gin.Context, s *service.Session) {
	k.set(c, AccessCookie, s.AccessToken, k.AccessTTL)
	k.set(c, RefreshCookie, s.RefreshToken, k.RefreshTTL)
}

func (k Cookies) Clear(c *gin.Context) {
	k.set(c, AccessCookie, "", -1)
	k.set(c, RefreshCookie, "", -1)
}

func (k Cookies) set(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   k.Domain,
		MaxAge:   maxAge,
		Secure:   k.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentIdentity 返回副本，下游拿不到可写引用
func CurrentIdentity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(keyIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok && id.UserID != ""
}

// Guard 每个请求：解析身份（access 过期则用 refresh 轮换并回写 cookie），再按路径决定放行或 302
func Guard(res SessionResolver, lookup guard.RoleLookup, ck Cookies, l *zap.Logger) gin.HandlerFunc {
	l = l.Named("guard")
	return func(c *gin.Context) {
		id := resolve(c, res, ck, l)
		if id != nil {
			c.Set(keyIdentity, *id)
		}
		d := guard.Decide(c.Request.Context(), c.Request.URL.Path, id, lookup)
		if d.Action == guard.Redirect {
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}

func resolve(c *gin.Context, res SessionResolver, ck Cookies, l *zap.Logger) *domain.Identity {
	if at, err := c.Cookie(AccessCookie); err == nil && at != "" {
		if id, err := res.Authenticate(at); err == nil {
			return id
		}
	}
	rt, err := c.Cookie(RefreshCookie)
	if err != nil || rt == "" {
		return nil
	}
	sess, err := res.Refresh(c.Request.Context(), rt)
	if err != nil {
		// 失效的会话清掉，避免每个请求都去轮换
		if domain.KindOf(err) == domain.KindUnauthorized {
			ck.Clear(c)
		} else {
			l.Warn("session refresh failed", zap.Error(err))
		}
		return nil
	}
	ck.Write(c, sess)
	id := sess.Identity
	return &id
}

package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"takas-go/internal/domain"
	"takas-go/internal/feature/guard"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/ez"
	mdw "takas-go/internal/transport/http/middleware"
)

const oauthStateCookie = "takas_oauth_state"

type AuthHandler struct {
	auth    *service.AuthService
	admin   *service.AdminService
	cookies mdw.Cookies
	log     *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, admin *service.AdminService, ck mdw.Cookies, l *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, admin: admin, cookies: ck, log: l.Named("auth")}
}

type credentials struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type authPage struct {
	OAuthEnabled bool   `json:"oauthEnabled"`
	Error        string `json:"error,omitempty"`
}

type sessionOut struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Redirect string `json:"redirect"`
}

func (o sessionOut) RedirectTo() string { return o.Redirect }

func (h *AuthHandler) Mount(r gin.IRouter) {
	e := ez.New(r)

	page := func(path string) {
		ez.RegisterAction(e, ez.Action[struct{}, authPage]{
			Method: http.MethodGet,
			Path:   path,
			Binder: ez.BindNone,
			Handler: func(c *gin.Context, _ domain.Identity, _ *struct{}) (authPage, error) {
				return authPage{OAuthEnabled: h.auth.OAuthEnabled(), Error: c.Query("error")}, nil
			},
		})
	}
	page(guard.PathSignIn)
	page(guard.PathSignUp)
	page(guard.PathAdminSignIn)

	ez.RegisterAction(e, ez.Action[credentials, sessionOut]{
		Method: http.MethodPost,
		Path:   guard.PathSignIn,
		Binder: ez.BindForm,
		Handler: func(c *gin.Context, _ domain.Identity, in *credentials) (sessionOut, error) {
			s, err := h.auth.SignIn(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return sessionOut{}, err
			}
			return h.start(c, s, guard.PathHome), nil
		},
	})

	ez.RegisterAction(e, ez.Action[service.SignUpInput, sessionOut]{
		Method: http.MethodPost,
		Path:   guard.PathSignUp,
		Binder: ez.BindForm,
		Handler: func(c *gin.Context, _ domain.Identity, in *service.SignUpInput) (sessionOut, error) {
			s, err := h.auth.SignUp(c.Request.Context(), *in)
			if err != nil {
				return sessionOut{}, err
			}
			return h.start(c, s, guard.PathHome), nil
		},
	})

	ez.RegisterAction(e, ez.Action[credentials, sessionOut]{
		Method: http.MethodPost,
		Path:   guard.PathAdminSignIn,
		Binder: ez.BindForm,
		Handler: func(c *gin.Context, _ domain.Identity, in *credentials) (sessionOut, error) {
			s, err := h.admin.SignIn(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return sessionOut{}, err
			}
			return h.start(c, s, guard.PathAdminDashboard), nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, sessionOut]{
		Method: http.MethodPost,
		Path:   "/sign-out",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ domain.Identity, _ *struct{}) (sessionOut, error) {
			rt, _ := c.Cookie(mdw.RefreshCookie)
			// cookie 无论如何都清掉
			h.cookies.Clear(c)
			if err := h.auth.SignOut(c.Request.Context(), rt); err != nil {
				h.log.Warn("sign out", zap.Error(err))
			}
			return sessionOut{Redirect: guard.PathSignIn}, nil
		},
	})

	r.GET("/auth/google", h.oauthStart)
	r.GET("/auth/callback", h.oauthCallback)
}

func (h *AuthHandler) start(c *gin.Context, s *service.Session, to string) sessionOut {
	h.cookies.Write(c, s)
	return sessionOut{UserID: s.Identity.UserID, Email: s.Identity.Email, Redirect: to}
}

func (h *AuthHandler) oauthStart(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		ez.Fail(c, domain.Wrap(domain.KindInternal, "auth.oauth_start", err))
		return
	}
	url, err := h.auth.OAuthURL(state)
	if err != nil {
		ez.Fail(c, err)
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, url)
}

// oauthCallback 失败时回到登录页并带上错误码，不渲染错误信封
func (h *AuthHandler) oauthCallback(c *gin.Context) {
	want, _ := c.Cookie(oauthStateCookie)
	http.SetCookie(c.Writer, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})

	got := c.Query("state")
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		h.log.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, guard.PathSignIn+"?error=oauth_state")
		return
	}
	if c.Query("error") != "" {
		c.Redirect(http.StatusFound, guard.PathSignIn+"?error=oauth_denied")
		return
	}
	s, err := h.auth.OAuthCallback(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.log.Warn("oauth callback", zap.Error(err))
		c.Redirect(http.StatusFound, guard.PathSignIn+"?error=oauth_"+domain.KindOf(err).String())
		return
	}
	h.cookies.Write(c, s)
	c.Redirect(http.StatusFound, guard.PathHome)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

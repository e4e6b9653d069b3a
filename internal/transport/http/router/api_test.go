package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"takas-go/internal/core/auth"
	"takas-go/internal/core/cache"
	"takas-go/internal/core/realtime"
	"takas-go/internal/core/security"
	"takas-go/internal/domain"
	"takas-go/internal/repo"
	"takas-go/internal/service"
	"takas-go/internal/testkit"
	"takas-go/internal/transport/http/handler"
	mdw "takas-go/internal/transport/http/middleware"
	resp "takas-go/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type testApp struct {
	ts    *httptest.Server
	roles *repo.RoleRepo
	store *testkit.MemStore
}

// newTestApp 与 cmd/web 相同的装配；withAdmin=false 模拟缺少特权连接
func newTestApp(t *testing.T, withAdmin bool) *testApp {
	t.Helper()
	db := testkit.DB(t)
	rdb, _ := testkit.Redis(t)
	l := zap.NewNop()
	clean := security.NewSanitizer()
	store := testkit.NewMemStore()
	cc := cache.New(rdb, "test:")
	broker := realtime.NewBroker(rdb, l)

	users := repo.NewUserRepo(db)
	roles := repo.NewRoleRepo(db)
	jwter := &auth.JWTer{Secret: []byte("0123456789abcdef"), Issuer: "takas-go", TTL: time.Minute}

	authSvc := service.NewAuthService(users, jwter, auth.NewRefreshStore(rdb, time.Hour), nil, clean, l)
	catalogSvc := service.NewCatalogService(repo.NewCatalogRepo(db), cc)
	itemSvc := service.NewItemService(repo.NewItemRepo(db), catalogSvc, store, clean, l)
	msgSvc := service.NewMessageService(repo.NewConversationRepo(db), repo.NewMessageRepo(db), users, broker, clean, l)
	var backend *service.AdminBackend
	if withAdmin {
		backend = &service.AdminBackend{
			Store: repo.NewAdminStore(db),
			Users: users,
			Items: repo.NewItemRepo(db),
			Roles: roles,
		}
	}
	adminSvc := service.NewAdminService(backend, roles, authSvc, store, cc, l)

	ck := mdw.Cookies{AccessTTL: time.Minute, RefreshTTL: time.Hour}
	engine := NewEngine(Deps{
		Log:      l,
		Sessions: authSvc,
		Roles:    roles.Lookup,
		Cookies:  ck,
		Limits:   DefaultLimits(),
		Streams:  []string{handler.MessageStreamPath},
		Modules: []Module{
			handler.NewAuthHandler(authSvc, adminSvc, ck, l),
			handler.NewItemHandler(itemSvc, catalogSvc),
			handler.NewProfileHandler(authSvc, itemSvc, roles, ck),
			handler.NewMessageHandler(msgSvc, broker, l),
			handler.NewAdminHandler(adminSvc),
		},
	})
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return &testApp{ts: ts, roles: roles, store: store}
}

// browser 带 cookie jar，不自动跟随跳转
type browser struct {
	t    *testing.T
	app  *testApp
	http *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, app: a, http: &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.app.ts.URL)
	for _, c := range b.http.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrf 先访问一个页面拿到双提交 cookie
func (b *browser) csrf() string {
	if v := b.cookie(mdw.CSRFCookie); v != "" {
		return v
	}
	res := b.send(http.MethodGet, "/catalog", nil, "", true)
	res.Body.Close()
	tok := b.cookie(mdw.CSRFCookie)
	require.NotEmpty(b.t, tok)
	return tok
}

func (b *browser) send(method, path string, body io.Reader, contentType string, wantJSON bool) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(method, b.app.ts.URL+path, body)
	require.NoError(b.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if wantJSON {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("Accept-Language", "en")
	if method != http.MethodGet {
		req.Header.Set(mdw.CSRFHeader, b.cookie(mdw.CSRFCookie))
	}
	res, err := b.http.Do(req)
	require.NoError(b.t, err)
	return res
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (b *browser) call(method, path string, payload any) envelope {
	b.t.Helper()
	var body io.Reader
	ct := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(b.t, err)
		body, ct = bytes.NewReader(raw), "application/json"
	}
	if method != http.MethodGet {
		b.csrf()
	}
	res := b.send(method, path, body, ct, true)
	defer res.Body.Close()
	require.Equal(b.t, http.StatusOK, res.StatusCode, "%s %s", method, path)
	var env envelope
	require.NoError(b.t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func into[T any](t *testing.T, env envelope) T {
	t.Helper()
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type session struct {
	UserID   string `json:"userId"`
	Redirect string `json:"redirect"`
}

func (b *browser) signUp(email string) session {
	b.t.Helper()
	env := b.call(http.MethodPost, "/sign-up", map[string]string{
		"email": email, "password": "sifre-1234", "displayName": "Test",
	})
	return into[session](b.t, env)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, true)
	b := app.browser(t)

	res := b.send(http.MethodGet, "/health", nil, "", false)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, b.cookie(mdw.CSRFCookie))

	res = b.send(http.MethodGet, "/metrics", nil, "", false)
	raw, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(raw), "takas_http_requests_total")
}

func TestAnonymousVisitorIsRedirected(t *testing.T) {
	b := newTestApp(t, true).browser(t)
	for path, to := range map[string]string{
		"/home":            "/sign-in",
		"/messages":        "/sign-in",
		"/admin/dashboard": "/admin/sign-in",
	} {
		res := b.send(http.MethodGet, path, nil, "", false)
		res.Body.Close()
		assert.Equal(t, http.StatusFound, res.StatusCode, path)
		assert.Equal(t, to, res.Header.Get("Location"), path)
	}

	// 落地页对匿名用户开放
	env := b.call(http.MethodGet, "/", nil)
	assert.Equal(t, resp.CodeOK, env.Code)
}

func TestSignUpThenBrowse(t *testing.T) {
	b := newTestApp(t, true).browser(t)
	s := b.signUp("ayse@example.com")
	assert.NotEmpty(t, s.UserID)
	assert.Equal(t, "/home", s.Redirect)
	assert.NotEmpty(t, b.cookie(mdw.AccessCookie))
	assert.NotEmpty(t, b.cookie(mdw.RefreshCookie))

	type page struct {
		Items   service.Page[domain.Item] `json:"items"`
		Catalog service.Catalog           `json:"catalog"`
	}
	home := into[page](t, b.call(http.MethodGet, "/home?size=5", nil))
	assert.Equal(t, 5, home.Items.Size)
	assert.NotEmpty(t, home.Catalog.Categories)

	// 已登录访问登录页回到首页
	res := b.send(http.MethodGet, "/sign-in", nil, "", false)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/home", res.Header.Get("Location"))

	// 退出后重复注册同一邮箱
	env := b.call(http.MethodPost, "/sign-out", nil)
	assert.Equal(t, resp.CodeOK, env.Code)
	env = b.call(http.MethodPost, "/sign-up", map[string]string{"email": "AYSE@example.com", "password": "sifre-1234"})
	assert.Equal(t, resp.CodeConflict, env.Code)
	assert.Equal(t, "email already registered", env.Msg)
}

func TestFormSignInGets303(t *testing.T) {
	app := newTestApp(t, true)
	app.browser(t).signUp("mehmet@example.com")

	b := app.browser(t)
	tok := b.csrf()
	form := url.Values{"email": {"mehmet@example.com"}, "password": {"sifre-1234"}, "_csrf": {tok}}
	res := b.send(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", false)
	res.Body.Close()
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/home", res.Header.Get("Location"))
	assert.NotEmpty(t, b.cookie(mdw.AccessCookie))
}

func TestMutationWithoutCSRFTokenIsRejected(t *testing.T) {
	b := newTestApp(t, true).browser(t)
	raw, _ := json.Marshal(map[string]string{"email": "x@example.com", "password": "sifre-1234"})
	res := b.send(http.MethodPost, "/sign-up", bytes.NewReader(raw), "application/json", true)
	defer res.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	assert.Equal(t, resp.CodeForbidden, env.Code)
	assert.Empty(t, b.cookie(mdw.AccessCookie))
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func (b *browser) createItem(title string, category, city uint, image []byte) envelope {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(b.t, mw.WriteField("title", title))
	require.NoError(b.t, mw.WriteField("description", "az kullanılmış"))
	require.NoError(b.t, mw.WriteField("categoryId", jsonNum(category)))
	require.NoError(b.t, mw.WriteField("cityId", jsonNum(city)))
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.bin")
		require.NoError(b.t, err)
		_, err = fw.Write(image)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())
	b.csrf()
	res := b.send(http.MethodPost, "/items", &buf, mw.FormDataContentType(), true)
	defer res.Body.Close()
	var env envelope
	require.NoError(b.t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func jsonNum(v uint) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestItemLifecycle(t *testing.T) {
	app := newTestApp(t, true)
	owner := app.browser(t)
	owner.signUp("sahip@example.com")
	cat := into[service.Catalog](t, owner.call(http.MethodGet, "/catalog", nil))
	catID, cityID := cat.Categories[0].ID, cat.Cities[0].ID

	item := into[domain.Item](t, owner.createItem("Bisiklet", catID, cityID, pngHeader))
	assert.True(t, item.Active)
	assert.True(t, strings.HasPrefix(item.ImageURL, "http://cdn.test/items/"), item.ImageURL)
	assert.True(t, strings.HasSuffix(item.ImageURL, ".png"), item.ImageURL)
	assert.Equal(t, 1, app.store.Len())

	// 非图片内容按嗅探结果拒绝
	env := owner.createItem("Kitap", catID, cityID, []byte("plain text, not an image"))
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	// 他人不能改、删
	stranger := app.browser(t)
	stranger.signUp("yabanci@example.com")
	env = stranger.call(http.MethodPost, "/items/"+item.ID+"/toggle", nil)
	assert.Equal(t, resp.CodeNotFound, env.Code)
	env = stranger.call(http.MethodDelete, "/items/"+item.ID, nil)
	assert.Equal(t, resp.CodeNotFound, env.Code)

	toggled := into[domain.Item](t, owner.call(http.MethodPost, "/items/"+item.ID+"/toggle", nil))
	assert.False(t, toggled.Active)
	// 下架后他人不可见
	env = stranger.call(http.MethodGet, "/items/"+item.ID, nil)
	assert.Equal(t, resp.CodeNotFound, env.Code)

	mine := into[service.Page[domain.Item]](t, owner.call(http.MethodGet, "/my/items", nil))
	assert.EqualValues(t, 1, mine.Total)

	env = owner.call(http.MethodDelete, "/items/"+item.ID, nil)
	assert.Equal(t, resp.CodeOK, env.Code)
	assert.Equal(t, 0, app.store.Len())
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, true)
	b := app.browser(t)
	s := b.signUp("yonetici@example.com")

	// 普通用户进不了后台
	res := b.send(http.MethodGet, "/admin/dashboard", nil, "", true)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/admin/sign-in", res.Header.Get("Location"))

	require.NoError(t, app.roles.Assign(context.Background(), s.UserID, domain.RoleAdmin, "test"))
	dash := into[domain.Dashboard](t, b.call(http.MethodGet, "/admin/dashboard", nil))
	assert.False(t, dash.Degraded)
	assert.EqualValues(t, 1, dash.Stats.Users)

	// admin 不能改角色
	env := b.call(http.MethodPut, "/admin/users/"+s.UserID+"/role", map[string]string{"role": "super_admin"})
	assert.Equal(t, resp.CodeForbidden, env.Code)
}

func TestAdminDegradedWithoutPrivilegedStore(t *testing.T) {
	app := newTestApp(t, false)
	b := app.browser(t)
	s := b.signUp("yonetici@example.com")
	require.NoError(t, app.roles.Assign(context.Background(), s.UserID, domain.RoleSuperAdmin, "test"))

	dash := into[domain.Dashboard](t, b.call(http.MethodGet, "/admin/dashboard", nil))
	assert.True(t, dash.Degraded)
	assert.Zero(t, dash.Stats.Users)

	env := b.call(http.MethodDelete, "/admin/items/whatever", nil)
	assert.Equal(t, resp.CodeUnavailable, env.Code)
}

// readEvent 读一条 SSE 事件，返回事件名和 data
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

type snapshot struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
}

func TestMessageStreamReceivesNewMessages(t *testing.T) {
	app := newTestApp(t, true)
	alice, bob := app.browser(t), app.browser(t)
	alice.signUp("alice@example.com")
	bobID := bob.signUp("bob@example.com").UserID

	conv := into[domain.Conversation](t, alice.call(http.MethodPost, "/messages/with/"+bobID, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.ts.URL+"/messages/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	res, err := bob.http.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	r := bufio.NewReader(res.Body)

	name, data := readEvent(t, r)
	assert.Equal(t, "inbox", name)
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, conv.ID, snap.Conversations[0].Conversation.ID)
	assert.Zero(t, snap.Conversations[0].Unread)

	msg := into[domain.Message](t, alice.call(http.MethodPost, "/messages/"+conv.ID, map[string]string{"content": "<b>merhaba</b>"}))
	assert.Equal(t, "merhaba", msg.Content)

	_, data = readEvent(t, r)
	snap = snapshot{}
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, 1, snap.Conversations[0].Unread)
	require.NotNil(t, snap.Conversations[0].Latest)
	assert.Equal(t, msg.ID, snap.Conversations[0].Latest.ID)
}

func TestProfileAndSettings(t *testing.T) {
	b := newTestApp(t, true).browser(t)
	b.signUp("profil@example.com")

	type profile struct {
		User      domain.User `json:"user"`
		Role      domain.Role `json:"role"`
		ItemCount int64       `json:"itemCount"`
	}
	p := into[profile](t, b.call(http.MethodGet, "/profile", nil))
	assert.Equal(t, "profil@example.com", p.User.Email)
	assert.Equal(t, domain.RoleUser, p.Role)
	assert.Zero(t, p.ItemCount)

	u := into[domain.User](t, b.call(http.MethodPut, "/settings", map[string]any{
		"profile": map[string]string{"displayName": "<i>Yeni Ad</i>", "phone": "+90 555 123 45 67"},
	}))
	assert.Equal(t, "Yeni Ad", u.Profile.DisplayName)

	env := b.call(http.MethodPut, "/settings", map[string]any{
		"profile": map[string]string{"avatarUrl": "javascript:alert(1)"},
	})
	assert.Equal(t, resp.CodeBadRequest, env.Code)
	assert.Equal(t, "invalid avatar url", env.Msg)
}

func TestOAuthWithoutProvider(t *testing.T) {
	b := newTestApp(t, true).browser(t)
	page := into[struct {
		OAuthEnabled bool `json:"oauthEnabled"`
	}](t, b.call(http.MethodGet, "/sign-in", nil))
	assert.False(t, page.OAuthEnabled)

	env := b.call(http.MethodGet, "/auth/google", nil)
	assert.Equal(t, resp.CodeUnavailable, env.Code)

	// state 不匹配直接回登录页
	res := b.send(http.MethodGet, "/auth/callback?state=forged&code=x", nil, "", false)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/sign-in?error=oauth_state", res.Header.Get("Location"))
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"takas-go/internal/core/auth"
	"takas-go/internal/core/cache"
	"takas-go/internal/core/oauth"
	"takas-go/internal/core/security"
	"takas-go/internal/domain"
	"takas-go/internal/repo"
	"takas-go/internal/testkit"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

type published struct {
	to []string
	ev domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, userIDs []string, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{to: append([]string(nil), userIDs...), ev: ev})
	return nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.ev.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeProvider struct {
	info *oauth.UserInfo
	err  error
}

func (f *fakeProvider) Name() string                    { return "google" }
func (f *fakeProvider) AuthCodeURL(state string) string { return "https://accounts.test/auth?state=" + state }
func (f *fakeProvider) Exchange(context.Context, string) (*oauth.UserInfo, error) {
	return f.info, f.err
}

type env struct {
	db       *gorm.DB
	redis    *miniredis.Miniredis
	users    *repo.UserRepo
	roles    *repo.RoleRepo
	store    *testkit.MemStore
	pub      *recordingPublisher
	provider *fakeProvider
	sessions *auth.RefreshStore
	cache    *cache.Cache

	auth     *AuthService
	catalog  *CatalogService
	items    *ItemService
	messages *MessageService
	admin    *AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.DB(t)
	rdb, mr := testkit.Redis(t)
	l := zap.NewNop()
	clean := security.NewSanitizer()

	e := &env{
		db:       db,
		redis:    mr,
		users:    repo.NewUserRepo(db),
		roles:    repo.NewRoleRepo(db),
		store:    testkit.NewMemStore(),
		pub:      &recordingPublisher{},
		provider: &fakeProvider{},
		sessions: auth.NewRefreshStore(rdb, time.Hour),
		cache:    cache.New(rdb, "test:"),
	}
	jwter := &auth.JWTer{Secret: []byte("0123456789abcdef"), Issuer: "takas-go", TTL: time.Minute}
	e.auth = NewAuthService(e.users, jwter, e.sessions, e.provider, clean, l)
	e.catalog = NewCatalogService(repo.NewCatalogRepo(db), e.cache)
	e.items = NewItemService(repo.NewItemRepo(db), e.catalog, e.store, clean, l)
	e.messages = NewMessageService(repo.NewConversationRepo(db), repo.NewMessageRepo(db), e.users, e.pub, clean, l)
	backend := &AdminBackend{
		Store: repo.NewAdminStore(db),
		Users: e.users,
		Items: repo.NewItemRepo(db),
		Roles: e.roles,
	}
	e.admin = NewAdminService(backend, e.roles, e.auth, e.store, e.cache, l)
	return e
}

func (e *env) signUp(t *testing.T, email string) *Session {
	t.Helper()
	s, err := e.auth.SignUp(context.Background(), SignUpInput{Email: email, Password: "sifre-1234", DisplayName: email})
	require.NoError(t, err)
	return s
}

func (e *env) catalogIDs(t *testing.T) (category, city uint) {
	t.Helper()
	c, err := e.catalog.Get(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, c.Categories)
	require.NotEmpty(t, c.Cities)
	return c.Categories[0].ID, c.Cities[0].ID
}

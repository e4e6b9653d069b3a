package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"takas-go/internal/domain"
)

func roleIs(r domain.Role) RoleLookup {
	return func(context.Context, string) (domain.Role, error) { return r, nil }
}

func failingLookup(context.Context, string) (domain.Role, error) {
	return "", errors.New("db down")
}

var someone = &domain.Identity{UserID: "u1", Email: "u1@example.com"}

func TestClassify(t *testing.T) {
	cases := map[string]PathClass{
		"/":                ClassRoot,
		"":                 ClassRoot,
		"/admin":           ClassAdmin,
		"/admin/dashboard": ClassAdmin,
		"/admin/users/1":   ClassAdmin,
		"/admin/sign-in":   ClassAdminSignIn,
		"/admin/sign-in/":  ClassAdminSignIn,
		"/administrator":   ClassPublic,
		"/home":            ClassProtected,
		"/items/abc":       ClassProtected,
		"/my/items":        ClassProtected,
		"/messages/stream": ClassProtected,
		"/settings":        ClassProtected,
		"/profile":         ClassProtected,
		"/sign-in":         ClassAuth,
		"/sign-up":         ClassAuth,
		"/auth/callback":   ClassPublic,
		"/health":          ClassPublic,
		"/itemsx":          ClassPublic,
	}
	for path, want := range cases {
		assert.Equal(t, want, Classify(path), path)
	}
}

func TestDecideScenarios(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		path   string
		id     *domain.Identity
		lookup RoleLookup
		want   Decision
	}{
		{"admin no session", "/admin/dashboard", nil, roleIs(domain.RoleAdmin), Decision{Redirect, PathAdminSignIn, ClassAdmin}},
		{"admin as user", "/admin/dashboard", someone, roleIs(domain.RoleUser), Decision{Redirect, PathAdminSignIn, ClassAdmin}},
		{"admin as admin", "/admin/dashboard", someone, roleIs(domain.RoleAdmin), Decision{Pass, "", ClassAdmin}},
		{"admin as super admin", "/admin/users", someone, roleIs(domain.RoleSuperAdmin), Decision{Pass, "", ClassAdmin}},
		{"admin sign-in anonymous", "/admin/sign-in", nil, roleIs(domain.RoleUser), Decision{Pass, "", ClassAdminSignIn}},
		{"admin sign-in non admin", "/admin/sign-in", someone, roleIs(domain.RoleUser), Decision{Redirect, PathRoot, ClassAdminSignIn}},
		{"admin sign-in admin", "/admin/sign-in", someone, roleIs(domain.RoleAdmin), Decision{Redirect, PathAdminDashboard, ClassAdminSignIn}},
		{"protected anonymous", "/messages", nil, nil, Decision{Redirect, PathSignIn, ClassProtected}},
		{"protected signed in", "/messages", someone, nil, Decision{Pass, "", ClassProtected}},
		{"sign-in signed in", "/sign-in", someone, roleIs(domain.RoleAdmin), Decision{Redirect, PathHome, ClassAuth}},
		{"sign-up anonymous", "/sign-up", nil, nil, Decision{Pass, "", ClassAuth}},
		{"root signed in", "/", someone, nil, Decision{Redirect, PathHome, ClassRoot}},
		{"root anonymous", "/", nil, nil, Decision{Pass, "", ClassRoot}},
		{"public anonymous", "/catalog", nil, nil, Decision{Pass, "", ClassPublic}},
		{"public signed in", "/catalog", someone, nil, Decision{Pass, "", ClassPublic}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(ctx, tc.path, tc.id, tc.lookup))
		})
	}
}

func TestDecideAdminFailsClosed(t *testing.T) {
	ctx := context.Background()
	lookups := map[string]RoleLookup{
		"error":   failingLookup,
		"user":    roleIs(domain.RoleUser),
		"unknown": roleIs(domain.Role("moderator")),
		"empty":   roleIs(""),
		"nil":     nil,
	}
	for _, path := range []string{"/admin", "/admin/dashboard", "/admin/users/1/role", "/admin/items"} {
		for name, lookup := range lookups {
			for _, id := range []*domain.Identity{nil, someone, {}} {
				d := Decide(ctx, path, id, lookup)
				assert.Equal(t, Redirect, d.Action, "%s %s", path, name)
				assert.Equal(t, PathAdminSignIn, d.Location, "%s %s", path, name)
			}
		}
	}
}

func TestDecideLookupErrorOnAdminSignIn(t *testing.T) {
	d := Decide(context.Background(), PathAdminSignIn, someone, failingLookup)
	assert.Equal(t, Decision{Redirect, PathRoot, ClassAdminSignIn}, d)
}

func TestDecideIsIdempotent(t *testing.T) {
	ctx := context.Background()
	calls := 0
	lookup := func(context.Context, string) (domain.Role, error) {
		calls++
		return domain.RoleAdmin, nil
	}
	for _, path := range []string{"/", "/admin/dashboard", "/admin/sign-in", "/home", "/sign-in", "/x"} {
		for _, id := range []*domain.Identity{nil, someone} {
			first := Decide(ctx, path, id, lookup)
			second := Decide(ctx, path, id, lookup)
			assert.Equal(t, first, second, path)
		}
	}
	// 每次都重新查角色
	assert.Equal(t, 4, calls)
}

func TestDecideSkipsLookupOutsideAdmin(t *testing.T) {
	called := false
	lookup := func(context.Context, string) (domain.Role, error) {
		called = true
		return domain.RoleAdmin, nil
	}
	Decide(context.Background(), "/home", someone, lookup)
	Decide(context.Background(), "/admin", nil, lookup)
	assert.False(t, called)
}

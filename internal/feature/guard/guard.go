// Package guard 按路径分类和登录/角色状态决定放行还是重定向。
// 每次请求重新计算，不缓存角色。
package guard

import (
	"context"
	"strings"

	"takas-go/internal/domain"
)

type PathClass uint8

const (
	ClassPublic PathClass = iota
	ClassAdmin
	ClassAdminSignIn
	ClassProtected
	ClassAuth
	ClassRoot
)

func (c PathClass) String() string {
	switch c {
	case ClassAdmin:
		return "admin"
	case ClassAdminSignIn:
		return "admin-sign-in"
	case ClassProtected:
		return "protected"
	case ClassAuth:
		return "auth"
	case ClassRoot:
		return "root"
	default:
		return "public"
	}
}

const (
	PathRoot           = "/"
	PathHome           = "/home"
	PathSignIn         = "/sign-in"
	PathSignUp         = "/sign-up"
	PathAdminSignIn    = "/admin/sign-in"
	PathAdminDashboard = "/admin/dashboard"
	adminPrefix        = "/admin"
)

var protectedPrefixes = []string{"/home", "/profile", "/items", "/my", "/messages", "/settings"}
var authPaths = []string{PathSignIn, PathSignUp}

// hasSegmentPrefix /items 命中 /items 与 /items/x，不命中 /itemsx
func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Classify admin 先于 protected 判断
func Classify(path string) PathClass {
	if path == "" {
		path = PathRoot
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	switch {
	case hasSegmentPrefix(path, PathAdminSignIn):
		return ClassAdminSignIn
	case hasSegmentPrefix(path, adminPrefix):
		return ClassAdmin
	}
	for _, p := range protectedPrefixes {
		if hasSegmentPrefix(path, p) {
			return ClassProtected
		}
	}
	for _, p := range authPaths {
		if hasSegmentPrefix(path, p) {
			return ClassAuth
		}
	}
	if path == PathRoot {
		return ClassRoot
	}
	return ClassPublic
}

type Action uint8

const (
	Pass Action = iota
	Redirect
)

type Decision struct {
	Action   Action
	Location string
	Class    PathClass
}

func pass(c PathClass) Decision { return Decision{Action: Pass, Class: c} }

func redirect(c PathClass, to string) Decision {
	return Decision{Action: Redirect, Location: to, Class: c}
}

// RoleLookup 实时查角色
type RoleLookup func(ctx context.Context, userID string) (domain.Role, error)

// Decide 纯函数：同样输入得到同样结果。角色查询失败按无角色处理（fail closed）
func Decide(ctx context.Context, path string, id *domain.Identity, lookup RoleLookup) Decision {
	class := Classify(path)
	authed := id != nil && id.UserID != ""

	isAdmin := func() bool {
		if !authed || lookup == nil {
			return false
		}
		role, err := lookup(ctx, id.UserID)
		return err == nil && role.IsAdmin()
	}

	switch class {
	case ClassAdmin:
		if isAdmin() {
			return pass(class)
		}
		return redirect(class, PathAdminSignIn)
	case ClassAdminSignIn:
		if !authed {
			return pass(class)
		}
		if isAdmin() {
			return redirect(class, PathAdminDashboard)
		}
		return redirect(class, PathRoot)
	case ClassProtected:
		if !authed {
			return redirect(class, PathSignIn)
		}
		return pass(class)
	case ClassAuth, ClassRoot:
		if authed {
			return redirect(class, PathHome)
		}
		return pass(class)
	default:
		return pass(class)
	}
}

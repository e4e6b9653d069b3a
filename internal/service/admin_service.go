package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"takas-go/internal/core/cache"
	"takas-go/internal/core/storage"
	"takas-go/internal/domain"
)

const (
	dashboardKey    = "admin:dashboard"
	dashboardTTL    = 30 * time.Second
	dashboardRecent = 5
)

// AdminBackend 走特权连接的仓储；未配置特权连接时整体为 nil
type AdminBackend struct {
	Store domain.AdminStore
	Users domain.UserRepository
	Items domain.ItemRepository
	Roles domain.RoleRepository
}

type AdminService struct {
	backend *AdminBackend
	roles   domain.RoleRepository
	auth    *AuthService
	objects storage.ObjectStore
	cache   *cache.Cache
	log     *zap.Logger
}

// NewAdminService roles 为普通连接上的角色查询，用于登录与权限校验
func NewAdminService(backend *AdminBackend, roles domain.RoleRepository, authSvc *AuthService,
	objects storage.ObjectStore, c *cache.Cache, l *zap.Logger) *AdminService {
	return &AdminService{backend: backend, roles: roles, auth: authSvc, objects: objects, cache: c, log: l.Named("admin")}
}

func (s *AdminService) Available() bool { return s.backend != nil }

// SignIn 密码正确且角色为管理员才下发会话
func (s *AdminService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	const op = "admin.sign_in"
	u, err := s.auth.verifyPassword(ctx, op, email, password)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Lookup(ctx, u.ID)
	if err != nil {
		s.log.Warn("role lookup failed", zap.String("uid", u.ID), zap.Error(err))
		return nil, domain.E(domain.KindForbidden, op, "admin access required")
	}
	if !role.IsAdmin() {
		return nil, domain.E(domain.KindForbidden, op, "admin access required")
	}
	return s.auth.issue(ctx, u)
}

// Dashboard 特权连接缺失时返回零值并标记 Degraded
func (s *AdminService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	if s.backend == nil {
		return &domain.Dashboard{RecentUsers: []domain.User{}, RecentItems: []domain.Item{}, Degraded: true}, nil
	}
	if s.cache == nil {
		return s.loadDashboard(ctx)
	}
	d, err := cache.GetOrLoadJSON(s.cache, ctx, dashboardKey, dashboardTTL, s.loadDashboard)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "admin.dashboard", err)
	}
	return d, nil
}

func (s *AdminService) loadDashboard(ctx context.Context) (*domain.Dashboard, error) {
	st := s.backend.Store
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := st.RecentUsers(ctx, dashboardRecent)
	if err != nil {
		return nil, err
	}
	items, err := st.RecentItems(ctx, dashboardRecent)
	if err != nil {
		return nil, err
	}
	return &domain.Dashboard{Stats: stats, RecentUsers: users, RecentItems: items}, nil
}

type AdminUser struct {
	domain.User
	Role domain.Role `json:"role"`
}

func (s *AdminService) Users(ctx context.Context, q string, page, size int) (*Page[AdminUser], error) {
	const op = "admin.users"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	offset, page, size := pageBounds(page, size)
	users, total, err := s.backend.Users.List(ctx, q, offset, size)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	out := make([]AdminUser, 0, len(users))
	for _, u := range users {
		role, err := s.backend.Roles.Lookup(ctx, u.ID)
		if err != nil {
			return nil, domain.Wrap(domain.KindInternal, op, err)
		}
		out = append(out, AdminUser{User: u, Role: role})
	}
	return &Page[AdminUser]{Items: out, Total: total, Page: page, Size: size}, nil
}

func (s *AdminService) Items(ctx context.Context, q string, page, size int) (*Page[domain.Item], error) {
	const op = "admin.items"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	offset, page, size := pageBounds(page, size)
	items, total, err := s.backend.Store.ListItems(ctx, q, offset, size)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	for i := range items {
		if items[i].ImagePath != "" && s.objects != nil {
			items[i].ImageURL = s.objects.PublicURL(items[i].ImagePath)
		}
	}
	return &Page[domain.Item]{Items: items, Total: total, Page: page, Size: size}, nil
}

// DeleteUser 软删用户、删除其物品与图片、踢掉会话
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	const op = "admin.delete_user"
	if err := s.ready(op); err != nil {
		return err
	}
	if actorID == userID {
		return domain.E(domain.KindInvalid, op, "cannot delete yourself")
	}
	target, err := s.backend.Roles.Lookup(ctx, userID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, op, err)
	}
	if target == domain.RoleSuperAdmin {
		return domain.E(domain.KindForbidden, op, "super admins cannot be deleted")
	}
	if err := s.backend.Users.SoftDelete(ctx, userID); err != nil {
		return err
	}
	items, err := s.backend.Items.DeleteByOwner(ctx, userID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, op, err)
	}
	for _, it := range items {
		s.dropImage(ctx, it.ImagePath)
	}
	if err := s.auth.RevokeUser(ctx, userID); err != nil {
		s.log.Warn("revoke sessions of deleted user", zap.String("uid", userID), zap.Error(err))
	}
	s.audit(ctx, actorID, "user.delete", userID, map[string]any{"items_deleted": len(items)})
	return nil
}

func (s *AdminService) DeleteItem(ctx context.Context, actorID, itemID string) error {
	const op = "admin.delete_item"
	if err := s.ready(op); err != nil {
		return err
	}
	it, err := s.backend.Items.Delete(ctx, itemID)
	if err != nil {
		return err
	}
	s.dropImage(ctx, it.ImagePath)
	s.audit(ctx, actorID, "item.delete", itemID, map[string]any{"owner_id": it.OwnerID, "title": it.Title})
	return nil
}

// SetRole 只有 super_admin 能改角色，且不能改自己
func (s *AdminService) SetRole(ctx context.Context, actorID, userID string, role domain.Role) error {
	const op = "admin.set_role"
	if err := s.ready(op); err != nil {
		return err
	}
	if !role.Valid() {
		return domain.E(domain.KindInvalid, op, "unknown role")
	}
	actor, err := s.roles.Lookup(ctx, actorID)
	if err != nil || actor != domain.RoleSuperAdmin {
		return domain.E(domain.KindForbidden, op, "only super admins can change roles")
	}
	if actorID == userID {
		return domain.E(domain.KindInvalid, op, "cannot change your own role")
	}
	u, err := s.backend.Users.FindByID(ctx, userID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, op, err)
	}
	if u == nil {
		return domain.E(domain.KindNotFound, op, "user not found")
	}
	if err := s.backend.Roles.Assign(ctx, userID, role, actorID); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.set", userID, map[string]any{"role": role})
	return nil
}

func (s *AdminService) AuditLogs(ctx context.Context, page, size int) (*Page[domain.AuditLog], error) {
	const op = "admin.audit"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	offset, page, size := pageBounds(page, size)
	logs, total, err := s.backend.Store.AuditLogs(ctx, offset, size)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	return &Page[domain.AuditLog]{Items: logs, Total: total, Page: page, Size: size}, nil
}

func (s *AdminService) ready(op string) error {
	if s.backend == nil {
		return domain.E(domain.KindUnavailable, op, "admin features are unavailable")
	}
	return nil
}

// audit 写审计并让仪表盘缓存失效；失败只记日志
func (s *AdminService) audit(ctx context.Context, actorID, action, targetID string, details map[string]any) {
	b, _ := json.Marshal(details)
	entry := &domain.AuditLog{ActorID: actorID, Action: action, TargetID: targetID, Details: datatypes.JSON(b)}
	if err := s.backend.Store.Audit(ctx, entry); err != nil {
		s.log.Error("write audit log", zap.String("action", action), zap.Error(err))
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, dashboardKey)
	}
	s.log.Info("admin action", zap.String("actor", actorID), zap.String("action", action), zap.String("target", targetID))
}

func (s *AdminService) dropImage(ctx context.Context, key string) {
	if key == "" || s.objects == nil {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("delete image", zap.String("key", key), zap.Error(err))
	}
}

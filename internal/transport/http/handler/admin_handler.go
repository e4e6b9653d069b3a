package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"takas-go/internal/domain"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/ez"
)

// AdminHandler /admin 下的接口；角色校验由路由守卫完成
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type listQ struct {
	Q    string `form:"q"`
	Page int    `form:"page"`
	Size int    `form:"size"`
}

type roleIn struct {
	Role domain.Role `json:"role" form:"role" binding:"required"`
}

func (h *AdminHandler) Mount(r gin.IRouter) {
	e := ez.New(r)

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dashboard]{
		Method: http.MethodGet,
		Path:   "/admin/dashboard",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ domain.Identity, _ *struct{}) (*domain.Dashboard, error) {
			return h.admin.Dashboard(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[listQ, *service.Page[service.AdminUser]]{
		Method: http.MethodGet,
		Path:   "/admin/users",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ domain.Identity, in *listQ) (*service.Page[service.AdminUser], error) {
			return h.admin.Users(c.Request.Context(), in.Q, in.Page, in.Size)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/admin/users/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (idOut, error) {
			target := c.Param("id")
			return idOut{ID: target}, h.admin.DeleteUser(c.Request.Context(), id.UserID, target)
		},
	})

	ez.RegisterAction(e, ez.Action[roleIn, idOut]{
		Method: http.MethodPut,
		Path:   "/admin/users/:id/role",
		Binder: ez.BindForm,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, in *roleIn) (idOut, error) {
			target := c.Param("id")
			return idOut{ID: target}, h.admin.SetRole(c.Request.Context(), id.UserID, target, in.Role)
		},
	})

	ez.RegisterAction(e, ez.Action[listQ, *service.Page[domain.Item]]{
		Method: http.MethodGet,
		Path:   "/admin/items",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ domain.Identity, in *listQ) (*service.Page[domain.Item], error) {
			return h.admin.Items(c.Request.Context(), in.Q, in.Page, in.Size)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/admin/items/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (idOut, error) {
			itemID := c.Param("id")
			return idOut{ID: itemID}, h.admin.DeleteItem(c.Request.Context(), id.UserID, itemID)
		},
	})

	ez.RegisterAction(e, ez.Action[listQ, *service.Page[domain.AuditLog]]{
		Method: http.MethodGet,
		Path:   "/admin/audit",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ domain.Identity, in *listQ) (*service.Page[domain.AuditLog], error) {
			return h.admin.AuditLogs(c.Request.Context(), in.Page, in.Size)
		},
	})
}

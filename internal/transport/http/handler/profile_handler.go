package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"takas-go/internal/domain"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/ez"
	mdw "takas-go/internal/transport/http/middleware"
)

type ProfileHandler struct {
	auth    *service.AuthService
	items   *service.ItemService
	roles   domain.RoleRepository
	cookies mdw.Cookies
}

func NewProfileHandler(auth *service.AuthService, items *service.ItemService, roles domain.RoleRepository, ck mdw.Cookies) *ProfileHandler {
	return &ProfileHandler{auth: auth, items: items, roles: roles, cookies: ck}
}

type profilePage struct {
	User      *domain.User `json:"user"`
	Role      domain.Role  `json:"role"`
	ItemCount int64        `json:"itemCount"`
}

func (h *ProfileHandler) Mount(r gin.IRouter) {
	e := ez.New(r)

	ez.RegisterAction(e, ez.Action[struct{}, profilePage]{
		Method: http.MethodGet,
		Path:   "/profile",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (profilePage, error) {
			ctx := c.Request.Context()
			u, err := h.auth.CurrentUser(ctx, id.UserID)
			if err != nil {
				return profilePage{}, err
			}
			mine, err := h.items.Mine(ctx, id.UserID, service.BrowseQuery{Size: 1})
			if err != nil {
				return profilePage{}, err
			}
			// 角色只用于展示，查询失败按普通用户显示
			role, err := h.roles.Lookup(ctx, id.UserID)
			if err != nil {
				role = domain.RoleUser
			}
			return profilePage{User: u, Role: role, ItemCount: mine.Total}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[service.UpdateUserInput, *domain.User]{
		Method: http.MethodPut,
		Path:   "/settings",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, in *service.UpdateUserInput) (*domain.User, error) {
			u, sess, err := h.auth.UpdateUser(c.Request.Context(), id.UserID, *in)
			if err != nil {
				return nil, err
			}
			if sess != nil {
				h.cookies.Write(c, sess)
			}
			return u, nil
		},
	})
}

package ez

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"takas-go/internal/domain"
	mdw "takas-go/internal/transport/http/middleware"
	resp "takas-go/internal/transport/http/response"
)

type EZ struct{ g gin.IRouter }

func New(g gin.IRouter) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindForm  Binder = "form"  // 按 Content-Type 自动选择 JSON / 表单 / multipart
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.PostForm 取
)

// Redirector 出参实现它时，表单提交得到 303 跳转，JSON 客户端照常拿到数据
type Redirector interface {
	RedirectTo() string
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string
	Binder  Binder
	Auth    bool // 要求已登录身份（路由守卫之外的兜底）
	Handler func(c *gin.Context, id domain.Identity, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	e.g.Handle(a.Method, a.Path, func(c *gin.Context) {
		// 1) 身份
		id, ok := mdw.CurrentIdentity(c)
		if a.Auth && !ok {
			Fail(c, domain.ErrUnauthorized)
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		case BindForm:
			bindErr = c.ShouldBind(&in)
		default:
		}
		if bindErr != nil {
			Fail(c, domain.Wrap(domain.KindInvalid, a.Path, bindErr))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, id, &in)
		if err != nil {
			Fail(c, err)
			return
		}
		if c.Writer.Written() || c.IsAborted() {
			return
		}
		if r, ok := any(out).(Redirector); ok && r.RedirectTo() != "" && !WantsJSON(c) {
			c.Redirect(http.StatusSeeOther, r.RedirectTo())
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	})
}

// Fail 唯一的错误出口：按 Kind 映射 code，按 Accept-Language 本地化
func Fail(c *gin.Context, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(http.StatusOK, resp.FromError(Lang(c), err))
}

func Lang(c *gin.Context) resp.Lang {
	return resp.LangFrom(c.GetHeader("Accept-Language"))
}

// WantsJSON 浏览器表单提交不带 application/json
func WantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}

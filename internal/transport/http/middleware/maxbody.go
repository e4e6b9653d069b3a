package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "takas-go/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；图片上传 5MB 加表单字段
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			abort(c, resp.CodeTooLarge, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

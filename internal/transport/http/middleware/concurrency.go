package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "takas-go/internal/transport/http/response"
)

// ConcurrencyLimit 限制同时在处理的请求数（保护 DB 下游）；SSE 不占名额
func ConcurrencyLimit(max int64, streams Streams) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if streams.Has(c) {
			c.Next()
			return
		}
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			abort(c, resp.CodeUnavailable, "server busy")
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}

func abort(c *gin.Context, code int, msg string) {
	lang := resp.LangFrom(c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(lang, code, resp.Localize(lang, msg)))
}

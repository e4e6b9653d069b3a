package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	resp "takas-go/internal/transport/http/response"
)

func Timeout(d time.Duration, streams Streams) gin.HandlerFunc {
	return func(c *gin.Context) {
		if streams.Has(c) {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			abort(c, resp.CodeTimeout, "timeout")
		}
	}
}

package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// query 里这些 key 的值不落日志（OAuth 回调带 code/state）
var sensitiveKeys = map[string]struct{}{
	"password": {}, "token": {}, "secret": {}, "client_secret": {}, "access_token": {},
	"code": {}, "state": {}, "_csrf": {},
}

func maskQuery(q url.Values) string {
	for k := range q {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			q[k] = []string{"****"}
		}
	}
	return q.Encode()
}

// AccessLog 一行一请求；5xx 记 Error，有 c.Errors 或 4xx 记 Warn
func AccessLog(l *zap.Logger, streams Streams) gin.HandlerFunc {
	l = l.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := make([]zap.Field, 0, 12)
		fields = append(fields,
			zap.String("rid", c.GetString(keyRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Int("size", c.Writer.Size()),
		)
		if c.Request.URL.RawQuery != "" {
			fields = append(fields, zap.String("query", maskQuery(c.Request.URL.Query())))
		}
		if id, ok := CurrentIdentity(c); ok {
			fields = append(fields, zap.String("uid", id.UserID))
		}
		if loc := c.Writer.Header().Get("Location"); loc != "" {
			fields = append(fields, zap.String("location", loc))
		}
		if streams.Has(c) {
			fields = append(fields, zap.Bool("stream", true))
		}

		lvl := zapcore.InfoLevel
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			lvl = zapcore.WarnLevel
		}
		if status >= 500 {
			lvl = zapcore.ErrorLevel
		}
		if ce := l.Check(lvl, "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"takas-go/internal/core/server"
	"takas-go/internal/feature/guard"
	mdw "takas-go/internal/transport/http/middleware"
)

type Limits struct {
	RPS         float64
	Burst       int
	PerIPRPS    float64
	PerIPBurst  int
	Concurrency int64
	MaxBody     int64
	Timeout     time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		RPS:         200,
		Burst:       400,
		PerIPRPS:    20,
		PerIPBurst:  40,
		Concurrency: 300,
		MaxBody:     8 << 20,
		Timeout:     10 * time.Second,
	}
}

type Deps struct {
	Log         *zap.Logger
	Sessions    mdw.SessionResolver
	Roles       guard.RoleLookup
	Cookies     mdw.Cookies
	CORSOrigins []string
	Limits      Limits
	// Streams 长连接路由模板，免超时与并发上限
	Streams     []string
	Modules     []Module
}

func NewEngine(d Deps) *gin.Engine {
	r := server.NewRouter(d.Log, d.CORSOrigins)
	lim := d.Limits
	streams := mdw.NewStreams(d.Streams...)

	r.Use(
		mdw.RequestID(),
		mdw.Recovery(d.Log),
		mdw.SecurityHeaders(),
		mdw.RateLimit(rateOf(lim.RPS), lim.Burst),
		mdw.RateLimitPerIP(rateOf(lim.PerIPRPS), lim.PerIPBurst, 10*time.Minute),
		mdw.ConcurrencyLimit(lim.Concurrency, streams),
		mdw.MaxBodyBytes(lim.MaxBody),
		mdw.Timeout(lim.Timeout, streams),
		mdw.Metrics(streams),
		mdw.AccessLog(d.Log, streams),
	)

	// 运维接口不走 CSRF 与守卫
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	app := r.Group("")
	app.Use(
		mdw.CSRF(d.Cookies, d.Log),
		mdw.Guard(d.Sessions, d.Roles, d.Cookies, d.Log),
	)
	MountAll(app, d.Modules...)
	return r
}

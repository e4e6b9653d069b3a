package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// Module 各 handler 自己挂路由
type Module interface{ Mount(gin.IRouter) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂），不实现默认 100
type prioritizer interface{ Priority() int }

// MountAll 按优先级挂载，同优先级保持传入顺序
func MountAll(r gin.IRouter, mods ...Module) {
	mods = append([]Module(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.Mount(r)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}

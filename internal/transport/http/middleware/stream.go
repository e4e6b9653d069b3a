package middleware

import "github.com/gin-gonic/gin"

// Streams 长连接路由模板（c.FullPath），不受超时和并发上限约束。
// 只认匹配到的路由，不看客户端的 Accept 头
type Streams map[string]struct{}

func NewStreams(routes ...string) Streams {
	s := make(Streams, len(routes))
	for _, r := range routes {
		s[r] = struct{}{}
	}
	return s
}

func (s Streams) Has(c *gin.Context) bool {
	p := c.FullPath()
	if p == "" {
		return false
	}
	_, ok := s[p]
	return ok
}

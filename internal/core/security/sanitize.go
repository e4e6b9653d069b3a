package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer 用户输入的纯文本字段（标题、描述、消息、资料）统一去标签
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text 去掉全部 HTML，还原实体，去首尾空白
func (s *Sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	out := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(out))
}

// Len 按字符计数
func Len(s string) int { return utf8.RuneCountInString(s) }

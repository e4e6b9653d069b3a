package service

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"takas-go/internal/core/security"
	"takas-go/internal/domain"
)

const (
	minPasswordLen   = 8
	maxPasswordLen   = 72 // bcrypt 上限
	maxDisplayName   = 64
	maxTitleLen      = 120
	minTitleLen      = 3
	maxDescription   = 2000
	MaxMessageLength = 2000
	defaultPageSize  = 20
	maxPageSize      = 50
	// maxPage 限住 offset，page 再大也只是空页
	maxPage          = 100_000
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

func normalizeEmail(op, raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", domain.E(domain.KindInvalid, op, "email is required")
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", domain.E(domain.KindInvalid, op, "invalid email")
	}
	return e, nil
}

func checkPassword(op, pw string) error {
	switch n := len(pw); {
	case n < minPasswordLen:
		return domain.E(domain.KindInvalid, op, "password too short")
	case n > maxPasswordLen:
		return domain.E(domain.KindInvalid, op, "password too long")
	}
	return nil
}

// ProfileInput 只有非 nil 字段会被修改
type ProfileInput struct {
	DisplayName *string `json:"displayName" form:"displayName"`
	Phone       *string `json:"phone" form:"phone"`
	AvatarURL   *string `json:"avatarUrl" form:"avatarUrl"`
}

func applyProfile(op string, clean *security.Sanitizer, p *domain.Profile, in *ProfileInput) error {
	if in == nil {
		return nil
	}
	if in.DisplayName != nil {
		v := clean.Text(*in.DisplayName)
		if security.Len(v) > maxDisplayName {
			return domain.E(domain.KindInvalid, op, "display name too long")
		}
		p.DisplayName = v
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if v != "" && !phonePattern.MatchString(v) {
			return domain.E(domain.KindInvalid, op, "invalid phone number")
		}
		p.Phone = v
	}
	if in.AvatarURL != nil {
		v := strings.TrimSpace(*in.AvatarURL)
		if v != "" && !isHTTPURL(v) {
			return domain.E(domain.KindInvalid, op, "invalid avatar url")
		}
		p.AvatarURL = v
	}
	return nil
}

func isHTTPURL(s string) bool {
	if len(s) > 512 {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Page 分页结果
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// pageBounds page 从 1 开始；size 超限截断，page 不超过 maxPage
func pageBounds(page, size int) (offset, p, s int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return (page - 1) * size, page, size
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

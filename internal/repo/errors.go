package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 各驱动报错文案不一致，按关键词兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

func clampLimit(limit, def, maxN int) int {
	if limit <= 0 || limit > maxN {
		return def
	}
	return limit
}

// likeEscaper 转义 LIKE 通配符。用 '!' 作转义符：MySQL 字面量里的 '\' 本身要转义，三家驱动写法不一致
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern 搜索词按字面匹配，配合 "LIKE ? ESCAPE '!'"
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

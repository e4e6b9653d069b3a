package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ActorID   string         `gorm:"size:36;index" json:"actorId"`
	Action    string         `gorm:"size:64" json:"action"`
	TargetID  string         `gorm:"size:36" json:"targetId"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

type DashboardStats struct {
	Users         int64 `json:"users"`
	Items         int64 `json:"items"`
	ActiveItems   int64 `json:"activeItems"`
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
}

type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	RecentUsers []User         `json:"recentUsers"`
	RecentItems []Item         `json:"recentItems"`
	// Degraded 管理库不可用时为 true，数据为零值
	Degraded bool `json:"degraded"`
}

// AdminStore 使用特权连接，绕过普通用户的所有权过滤
type AdminStore interface {
	Stats(ctx context.Context) (DashboardStats, error)
	RecentUsers(ctx context.Context, limit int) ([]User, error)
	RecentItems(ctx context.Context, limit int) ([]Item, error)
	ListItems(ctx context.Context, q string, offset, limit int) ([]Item, int64, error)
	Audit(ctx context.Context, entry *AuditLog) error
	AuditLogs(ctx context.Context, offset, limit int) ([]AuditLog, int64, error)
}

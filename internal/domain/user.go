package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSuperAdmin
}

// IsAdmin admin 与 super_admin 都可进入后台
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// Profile 展示用资料，全部可选；特权标记不放这里
type Profile struct {
	DisplayName string `gorm:"size:64" json:"displayName"`
	Phone       string `gorm:"size:32" json:"phone"`
	AvatarURL   string `gorm:"size:512" json:"avatarUrl"`
}

type User struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Email         string         `gorm:"uniqueIndex;size:191" json:"email"`
	PasswordHash  string         `gorm:"size:100" json:"-"`
	OAuthProvider string         `gorm:"column:oauth_provider;size:32;index:idx_oauth,priority:1" json:"-"`
	OAuthSubject  string         `gorm:"column:oauth_subject;size:191;index:idx_oauth,priority:2" json:"-"`
	Profile       Profile        `gorm:"embedded" json:"profile"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// RoleAssignment 每个用户至多一条；没有记录等价于普通用户
type RoleAssignment struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	Role      Role      `gorm:"size:16;not null" json:"role"`
	GrantedBy string    `gorm:"size:36" json:"grantedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity 一次请求里已确认的登录身份（只读视图）
type Identity struct {
	UserID string
	Email  string
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByOAuth(ctx context.Context, provider, subject string) (*User, error)
	List(ctx context.Context, q string, offset, limit int) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	SoftDelete(ctx context.Context, id string) error
}

type RoleRepository interface {
	// Lookup 未分配时返回 RoleUser, nil
	Lookup(ctx context.Context, userID string) (Role, error)
	Assign(ctx context.Context, userID string, role Role, grantedBy string) error
}

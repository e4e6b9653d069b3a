package domain

import (
	"context"
	"time"
)

type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Slug string `gorm:"uniqueIndex;size:64" json:"slug"`
	Name string `gorm:"size:128" json:"name"`
}

type City struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Slug string `gorm:"uniqueIndex;size:64" json:"slug"`
	Name string `gorm:"size:128" json:"name"`
}

// Item 列表项。is_deal 列沿用为上架/下架开关，Go 侧统一叫 Active
type Item struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:36;index;not null" json:"ownerId"`
	Title       string    `gorm:"size:120;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CategoryID  uint      `gorm:"index" json:"categoryId"`
	CityID      uint      `gorm:"index" json:"cityId"`
	ImagePath   string    `gorm:"size:255" json:"-"`
	ImageURL    string    `gorm:"-" json:"imageUrl,omitempty"`
	Active      bool      `gorm:"column:is_deal;index;not null" json:"active"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusInactive ItemStatus = "inactive"
	StatusAll      ItemStatus = "all"
)

type ItemFilter struct {
	OwnerID    string
	CategoryID uint
	CityID     uint
	Query      string
	Status     ItemStatus
	Offset     int
	Limit      int
}

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	FindByID(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, f ItemFilter) ([]Item, int64, error)
	// UpdateOwned/DeleteOwned 以 owner_id 过滤，非本人返回 ErrNotFound
	UpdateOwned(ctx context.Context, ownerID string, it *Item) error
	DeleteOwned(ctx context.Context, ownerID, id string) (*Item, error)
	Delete(ctx context.Context, id string) (*Item, error)
	DeleteByOwner(ctx context.Context, ownerID string) ([]Item, error)
}

type CatalogRepository interface {
	Categories(ctx context.Context) ([]Category, error)
	Cities(ctx context.Context) ([]City, error)
}

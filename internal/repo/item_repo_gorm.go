package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"takas-go/internal/domain"
)

type ItemRepo struct{ db *gorm.DB }

func NewItemRepo(db *gorm.DB) *ItemRepo { return &ItemRepo{db: db} }

func (r *ItemRepo) Create(ctx context.Context, it *domain.Item) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *ItemRepo) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	var it domain.Item
	err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItemRepo) List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Item{})
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.CityID != 0 {
		q = q.Where("city_id = ?", f.CityID)
	}
	switch f.Status {
	case domain.StatusAll:
	case domain.StatusInactive:
		q = q.Where("is_deal = ?", false)
	default:
		q = q.Where("is_deal = ?", true)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := containsPattern(s)
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.Item
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(f.Offset).Limit(clampLimit(f.Limit, 20, 50)).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ItemRepo) UpdateOwned(ctx context.Context, ownerID string, it *domain.Item) error {
	res := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ? AND owner_id = ?", it.ID, ownerID).
		Select("title", "description", "category_id", "city_id", "image_path", "is_deal", "updated_at").
		Updates(it)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.E(domain.KindNotFound, "item.update", "item not found")
	}
	return nil
}

// DeleteOwned 返回被删除的记录，调用方据此清理图片
func (r *ItemRepo) DeleteOwned(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	return r.deleteWhere(ctx, "item.delete", "id = ? AND owner_id = ?", id, ownerID)
}

func (r *ItemRepo) Delete(ctx context.Context, id string) (*domain.Item, error) {
	return r.deleteWhere(ctx, "item.delete", "id = ?", id)
}

func (r *ItemRepo) deleteWhere(ctx context.Context, op, query string, args ...any) (*domain.Item, error) {
	var it domain.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(query, args...).First(&it).Error; err != nil {
			if isNotFound(err) {
				return domain.E(domain.KindNotFound, op, "item not found")
			}
			return err
		}
		return tx.Delete(&domain.Item{}, "id = ?", it.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItemRepo) DeleteByOwner(ctx context.Context, ownerID string) ([]domain.Item, error) {
	var items []domain.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Find(&items).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&domain.Item{}).Error
	})
	return items, err
}

type CatalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	return out, r.db.WithContext(ctx).Order("name").Find(&out).Error
}

func (r *CatalogRepo) Cities(ctx context.Context) ([]domain.City, error) {
	var out []domain.City
	return out, r.db.WithContext(ctx).Order("name").Find(&out).Error
}

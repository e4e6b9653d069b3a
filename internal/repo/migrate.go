package repo

import (
	"context"

	"gorm.io/gorm"

	"takas-go/internal/domain"
)

var defaultCategories = []domain.Category{
	{Slug: "elektronik", Name: "Elektronik"},
	{Slug: "giyim", Name: "Giyim"},
	{Slug: "ev-yasam", Name: "Ev & Yaşam"},
	{Slug: "kitap", Name: "Kitap"},
	{Slug: "spor", Name: "Spor"},
	{Slug: "oyuncak", Name: "Oyuncak"},
	{Slug: "diger", Name: "Diğer"},
}

var defaultCities = []domain.City{
	{Slug: "istanbul", Name: "İstanbul"},
	{Slug: "ankara", Name: "Ankara"},
	{Slug: "izmir", Name: "İzmir"},
	{Slug: "bursa", Name: "Bursa"},
	{Slug: "antalya", Name: "Antalya"},
	{Slug: "eskisehir", Name: "Eskişehir"},
}

// Migrate 建表并写入基础分类/城市（幂等）
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	err := db.AutoMigrate(
		&domain.User{},
		&domain.RoleAssignment{},
		&domain.Category{},
		&domain.City{},
		&domain.Item{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.AuditLog{},
	)
	if err != nil {
		return err
	}
	for _, c := range defaultCategories {
		c := c
		if err := db.Where(domain.Category{Slug: c.Slug}).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	for _, c := range defaultCities {
		c := c
		if err := db.Where(domain.City{Slug: c.Slug}).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"time"

	"takas-go/internal/core/cache"
	"takas-go/internal/domain"
)

const catalogTTL = 10 * time.Minute

type Catalog struct {
	Categories []domain.Category `json:"categories"`
	Cities     []domain.City     `json:"cities"`
}

func (c *Catalog) HasCategory(id uint) bool {
	for _, x := range c.Categories {
		if x.ID == id {
			return true
		}
	}
	return false
}

func (c *Catalog) HasCity(id uint) bool {
	for _, x := range c.Cities {
		if x.ID == id {
			return true
		}
	}
	return false
}

type CatalogService struct {
	repo  domain.CatalogRepository
	cache *cache.Cache
}

// NewCatalogService cache 为 nil 时每次直接查库
func NewCatalogService(repo domain.CatalogRepository, c *cache.Cache) *CatalogService {
	return &CatalogService{repo: repo, cache: c}
}

func (s *CatalogService) Get(ctx context.Context) (*Catalog, error) {
	if s.cache == nil {
		return s.load(ctx)
	}
	out, err := cache.GetOrLoadJSON(s.cache, ctx, "catalog", catalogTTL, func(ctx context.Context) (*Catalog, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "catalog.get", err)
	}
	return out, nil
}

func (s *CatalogService) load(ctx context.Context) (*Catalog, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	cities, err := s.repo.Cities(ctx)
	if err != nil {
		return nil, err
	}
	return &Catalog{Categories: cats, Cities: cities}, nil
}

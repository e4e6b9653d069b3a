package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"takas-go/internal/core/security"
	"takas-go/internal/core/storage"
	"takas-go/internal/domain"
	"takas-go/pkg/utils"
)

type ItemInput struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	CategoryID  uint   `json:"categoryId" form:"categoryId"`
	CityID      uint   `json:"cityId" form:"cityId"`
}

// Image 上传的图片；Size 未知时传 -1
type Image struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type BrowseQuery struct {
	Page       int    `form:"page"`
	Size       int    `form:"size"`
	CategoryID uint   `form:"category"`
	CityID     uint   `form:"city"`
	Query      string `form:"q"`
	Status     string `form:"status"`
	OwnerID    string `form:"owner"`
}

type ItemService struct {
	items   domain.ItemRepository
	catalog *CatalogService
	objects storage.ObjectStore
	clean   *security.Sanitizer
	log     *zap.Logger
}

// NewItemService objects 为 nil 时不支持图片
func NewItemService(items domain.ItemRepository, catalog *CatalogService, objects storage.ObjectStore,
	clean *security.Sanitizer, l *zap.Logger) *ItemService {
	return &ItemService{items: items, catalog: catalog, objects: objects, clean: clean, log: l.Named("items")}
}

func (s *ItemService) Create(ctx context.Context, ownerID string, in ItemInput, img *Image) (*domain.Item, error) {
	const op = "item.create"
	it := &domain.Item{ID: utils.NewID(), OwnerID: ownerID, Active: true}
	if err := s.fill(ctx, op, it, in); err != nil {
		return nil, err
	}
	if img != nil {
		key, err := s.upload(ctx, op, ownerID, img)
		if err != nil {
			return nil, err
		}
		it.ImagePath = key
	}
	if err := s.items.Create(ctx, it); err != nil {
		s.dropImage(ctx, it.ImagePath)
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	s.decorate(it)
	return it, nil
}

// Get 下架的物品只有主人能看到
func (s *ItemService) Get(ctx context.Context, viewerID, id string) (*domain.Item, error) {
	const op = "item.get"
	it, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if it == nil || (!it.Active && it.OwnerID != viewerID) {
		return nil, domain.E(domain.KindNotFound, op, "item not found")
	}
	s.decorate(it)
	return it, nil
}

// Update 仅主人可改；带新图时替换并删除旧图
func (s *ItemService) Update(ctx context.Context, ownerID, id string, in ItemInput, img *Image) (*domain.Item, error) {
	const op = "item.update"
	it, err := s.owned(ctx, op, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, op, it, in); err != nil {
		return nil, err
	}
	old := ""
	if img != nil {
		key, err := s.upload(ctx, op, ownerID, img)
		if err != nil {
			return nil, err
		}
		old, it.ImagePath = it.ImagePath, key
	}
	if err := s.items.UpdateOwned(ctx, ownerID, it); err != nil {
		if img != nil {
			s.dropImage(ctx, it.ImagePath)
		}
		return nil, err
	}
	s.dropImage(ctx, old)
	s.decorate(it)
	return it, nil
}

// Toggle 上架/下架切换
func (s *ItemService) Toggle(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	const op = "item.toggle"
	it, err := s.owned(ctx, op, ownerID, id)
	if err != nil {
		return nil, err
	}
	it.Active = !it.Active
	if err := s.items.UpdateOwned(ctx, ownerID, it); err != nil {
		return nil, err
	}
	s.decorate(it)
	return it, nil
}

func (s *ItemService) Delete(ctx context.Context, ownerID, id string) error {
	it, err := s.items.DeleteOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	s.dropImage(ctx, it.ImagePath)
	return nil
}

// Browse 公开列表，只看上架的
func (s *ItemService) Browse(ctx context.Context, q BrowseQuery) (*Page[domain.Item], error) {
	q.Status = string(domain.StatusActive)
	return s.list(ctx, "item.browse", q)
}

// Mine 自己的物品，默认全部状态
func (s *ItemService) Mine(ctx context.Context, ownerID string, q BrowseQuery) (*Page[domain.Item], error) {
	q.OwnerID = ownerID
	if q.Status == "" {
		q.Status = string(domain.StatusAll)
	}
	return s.list(ctx, "item.mine", q)
}

func (s *ItemService) list(ctx context.Context, op string, q BrowseQuery) (*Page[domain.Item], error) {
	status := domain.ItemStatus(q.Status)
	switch status {
	case domain.StatusActive, domain.StatusInactive, domain.StatusAll:
	default:
		return nil, domain.E(domain.KindInvalid, op, "unknown status filter")
	}
	offset, page, size := pageBounds(q.Page, q.Size)
	items, total, err := s.items.List(ctx, domain.ItemFilter{
		OwnerID:    q.OwnerID,
		CategoryID: q.CategoryID,
		CityID:     q.CityID,
		Query:      q.Query,
		Status:     status,
		Offset:     offset,
		Limit:      size,
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return &Page[domain.Item]{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *ItemService) owned(ctx context.Context, op, ownerID, id string) (*domain.Item, error) {
	it, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	// 不是自己的也按不存在处理
	if it == nil || it.OwnerID != ownerID {
		return nil, domain.E(domain.KindNotFound, op, "item not found")
	}
	return it, nil
}

func (s *ItemService) fill(ctx context.Context, op string, it *domain.Item, in ItemInput) error {
	title := s.clean.Text(in.Title)
	desc := s.clean.Text(in.Description)
	switch n := security.Len(title); {
	case n < minTitleLen:
		return domain.E(domain.KindInvalid, op, "title too short")
	case n > maxTitleLen:
		return domain.E(domain.KindInvalid, op, "title too long")
	}
	if security.Len(desc) > maxDescription {
		return domain.E(domain.KindInvalid, op, "description too long")
	}
	cat, err := s.catalog.Get(ctx)
	if err != nil {
		return err
	}
	if !cat.HasCategory(in.CategoryID) {
		return domain.E(domain.KindInvalid, op, "unknown category")
	}
	if !cat.HasCity(in.CityID) {
		return domain.E(domain.KindInvalid, op, "unknown city")
	}
	it.Title, it.Description = title, desc
	it.CategoryID, it.CityID = in.CategoryID, in.CityID
	return nil
}

func (s *ItemService) upload(ctx context.Context, op, ownerID string, img *Image) (string, error) {
	if s.objects == nil {
		return "", domain.E(domain.KindUnavailable, op, "image upload is not configured")
	}
	if img.Size > storage.MaxImageBytes {
		return "", domain.E(domain.KindInvalid, op, "image too large")
	}
	key, ok := storage.ImageKey(ownerID, img.ContentType)
	if !ok {
		return "", domain.E(domain.KindInvalid, op, "unsupported image type")
	}
	body := io.LimitReader(img.Body, storage.MaxImageBytes+1)
	if err := s.objects.Put(ctx, key, body, img.Size, img.ContentType); err != nil {
		return "", domain.Wrap(domain.KindUnavailable, op, err)
	}
	return key, nil
}

// dropImage 尽力删除，失败只记日志
func (s *ItemService) dropImage(ctx context.Context, key string) {
	if key == "" || s.objects == nil {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("delete image", zap.String("key", key), zap.Error(err))
	}
}

func (s *ItemService) decorate(it *domain.Item) {
	if it.ImagePath != "" && s.objects != nil {
		it.ImageURL = s.objects.PublicURL(it.ImagePath)
	}
}

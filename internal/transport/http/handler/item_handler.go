package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"takas-go/internal/core/storage"
	"takas-go/internal/domain"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/ez"
)

const landingSize = 12

type ItemHandler struct {
	items   *service.ItemService
	catalog *service.CatalogService
}

func NewItemHandler(items *service.ItemService, catalog *service.CatalogService) *ItemHandler {
	return &ItemHandler{items: items, catalog: catalog}
}

type browsePage struct {
	Items   *service.Page[domain.Item] `json:"items"`
	Catalog *service.Catalog           `json:"catalog"`
}

type idOut struct {
	ID string `json:"id"`
}

func (h *ItemHandler) Mount(r gin.IRouter) {
	e := ez.New(r)

	// 落地页：最新上架
	ez.RegisterAction(e, ez.Action[struct{}, browsePage]{
		Method: http.MethodGet,
		Path:   "/",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ domain.Identity, _ *struct{}) (browsePage, error) {
			return h.browse(c, service.BrowseQuery{Size: landingSize})
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.Catalog]{
		Method: http.MethodGet,
		Path:   "/catalog",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ domain.Identity, _ *struct{}) (*service.Catalog, error) {
			return h.catalog.Get(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[service.BrowseQuery, browsePage]{
		Method: http.MethodGet,
		Path:   "/home",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ domain.Identity, q *service.BrowseQuery) (browsePage, error) {
			return h.browse(c, *q)
		},
	})

	ez.RegisterAction(e, ez.Action[service.BrowseQuery, *service.Page[domain.Item]]{
		Method: http.MethodGet,
		Path:   "/my/items",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, q *service.BrowseQuery) (*service.Page[domain.Item], error) {
			return h.items.Mine(c.Request.Context(), id.UserID, *q)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Item]{
		Method: http.MethodGet,
		Path:   "/items/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (*domain.Item, error) {
			return h.items.Get(c.Request.Context(), id.UserID, c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[service.ItemInput, *domain.Item]{
		Method: http.MethodPost,
		Path:   "/items",
		Binder: ez.BindForm,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, in *service.ItemInput) (*domain.Item, error) {
			img, err := imageFrom(c)
			if err != nil {
				return nil, err
			}
			return h.items.Create(c.Request.Context(), id.UserID, *in, img)
		},
	})

	ez.RegisterAction(e, ez.Action[service.ItemInput, *domain.Item]{
		Method: http.MethodPut,
		Path:   "/items/:id",
		Binder: ez.BindForm,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, in *service.ItemInput) (*domain.Item, error) {
			img, err := imageFrom(c)
			if err != nil {
				return nil, err
			}
			return h.items.Update(c.Request.Context(), id.UserID, c.Param("id"), *in, img)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Item]{
		Method: http.MethodPost,
		Path:   "/items/:id/toggle",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (*domain.Item, error) {
			return h.items.Toggle(c.Request.Context(), id.UserID, c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/items/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, id domain.Identity, _ *struct{}) (idOut, error) {
			itemID := c.Param("id")
			return idOut{ID: itemID}, h.items.Delete(c.Request.Context(), id.UserID, itemID)
		},
	})
}

func (h *ItemHandler) browse(c *gin.Context, q service.BrowseQuery) (browsePage, error) {
	page, err := h.items.Browse(c.Request.Context(), q)
	if err != nil {
		return browsePage{}, err
	}
	cat, err := h.catalog.Get(c.Request.Context())
	if err != nil {
		return browsePage{}, err
	}
	return browsePage{Items: page, Catalog: cat}, nil
}

// imageFrom 取 multipart 里的 image 字段；类型按内容嗅探，不信任客户端声明
func imageFrom(c *gin.Context) (*service.Image, error) {
	const op = "item.image"
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalid, op, err)
	}
	if fh.Size > storage.MaxImageBytes {
		return nil, domain.E(domain.KindInvalid, op, "image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalid, op, err)
	}
	// multipart 文件在请求结束时由 net/http 清理；内容一次读完，最多 5MB
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes+1))
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalid, op, err)
	}
	return &service.Image{
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: http.DetectContentType(data),
	}, nil
}

package service

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"takas-go/internal/domain"
)

func pngImage() *Image {
	return &Image{Body: strings.NewReader("\x89PNG fake"), Size: 9, ContentType: "image/png"}
}

func TestItemLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.signUp(t, "sahip@example.com").Identity.UserID
	other := e.signUp(t, "diger@example.com").Identity.UserID
	cat, city := e.catalogIDs(t)

	it, err := e.items.Create(ctx, owner, ItemInput{
		Title: "<i>Bisiklet</i>", Description: "Az kullanılmış", CategoryID: cat, CityID: city,
	}, pngImage())
	require.NoError(t, err)
	assert.Equal(t, "Bisiklet", it.Title)
	assert.True(t, it.Active)
	require.NotEmpty(t, it.ImagePath)
	assert.True(t, strings.HasPrefix(it.ImagePath, "items/"+owner+"/"))
	assert.Equal(t, "http://cdn.test/"+it.ImagePath, it.ImageURL)
	assert.True(t, e.store.Has(it.ImagePath))

	// 别人改不了也删不了
	_, err = e.items.Update(ctx, other, it.ID, ItemInput{Title: "Çalıntı", CategoryID: cat, CityID: city}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.items.Toggle(ctx, other, it.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, e.items.Delete(ctx, other, it.ID), domain.ErrNotFound)

	oldImage := it.ImagePath
	up, err := e.items.Update(ctx, owner, it.ID, ItemInput{Title: "Dağ bisikleti", CategoryID: cat, CityID: city}, pngImage())
	require.NoError(t, err)
	assert.Equal(t, "Dağ bisikleti", up.Title)
	assert.NotEqual(t, oldImage, up.ImagePath)
	assert.False(t, e.store.Has(oldImage))
	assert.True(t, e.store.Has(up.ImagePath))

	off, err := e.items.Toggle(ctx, owner, it.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)

	// 下架后别人看不到，主人能看到
	_, err = e.items.Get(ctx, other, it.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := e.items.Get(ctx, owner, it.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, e.items.Delete(ctx, owner, it.ID))
	assert.Zero(t, e.store.Len())
	_, err = e.items.Get(ctx, owner, it.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.signUp(t, "v@example.com").Identity.UserID
	cat, city := e.catalogIDs(t)

	cases := []struct {
		name string
		in   ItemInput
		img  *Image
	}{
		{"short title", ItemInput{Title: "ab", CategoryID: cat, CityID: city}, nil},
		{"long title", ItemInput{Title: strings.Repeat("x", 121), CategoryID: cat, CityID: city}, nil},
		{"long description", ItemInput{Title: "Kitap", Description: strings.Repeat("x", 2001), CategoryID: cat, CityID: city}, nil},
		{"unknown category", ItemInput{Title: "Kitap", CategoryID: 9999, CityID: city}, nil},
		{"unknown city", ItemInput{Title: "Kitap", CategoryID: cat, CityID: 9999}, nil},
		{"bad image type", ItemInput{Title: "Kitap", CategoryID: cat, CityID: city},
			&Image{Body: strings.NewReader("%PDF"), Size: 4, ContentType: "application/pdf"}},
		{"image too large", ItemInput{Title: "Kitap", CategoryID: cat, CityID: city},
			&Image{Body: strings.NewReader(""), Size: 6 << 20, ContentType: "image/jpeg"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := e.items.Create(ctx, owner, c.in, c.img)
			assert.ErrorIs(t, err, domain.ErrInvalid)
		})
	}
	assert.Zero(t, e.store.Len())
}

func TestItemImageWithoutStorage(t *testing.T) {
	e := newEnv(t)
	e.items.objects = nil
	owner := e.signUp(t, "n@example.com").Identity.UserID
	cat, city := e.catalogIDs(t)

	_, err := e.items.Create(context.Background(), owner, ItemInput{Title: "Kitap", CategoryID: cat, CityID: city}, pngImage())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestBrowseAndMine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.signUp(t, "a@example.com").Identity.UserID
	b := e.signUp(t, "b@example.com").Identity.UserID
	cat, city := e.catalogIDs(t)

	titles := []string{"Kırmızı çanta", "Mavi çanta", "Satranç takımı"}
	var ids []string
	for _, title := range titles {
		it, err := e.items.Create(ctx, a, ItemInput{Title: title, CategoryID: cat, CityID: city}, nil)
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}
	_, err := e.items.Create(ctx, b, ItemInput{Title: "Mavi kazak", CategoryID: cat, CityID: city}, nil)
	require.NoError(t, err)
	_, err = e.items.Toggle(ctx, a, ids[1])
	require.NoError(t, err)

	page, err := e.items.Browse(ctx, BrowseQuery{Query: "mavi"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Mavi kazak", page.Items[0].Title)

	// 公开列表忽略 status，只看上架
	page, err = e.items.Browse(ctx, BrowseQuery{Status: "all"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	page, err = e.items.Browse(ctx, BrowseQuery{Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Size)
	assert.Equal(t, 1, page.Page)

	page, err = e.items.Browse(ctx, BrowseQuery{Size: 1, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 3, page.Total)

	// 超大页码不溢出成负 offset，只是空页
	page, err = e.items.Browse(ctx, BrowseQuery{Size: 50, Page: math.MaxInt})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 3, page.Total)

	mine, err := e.items.Mine(ctx, a, BrowseQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, mine.Total)
	mine, err = e.items.Mine(ctx, a, BrowseQuery{Status: "inactive"})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, ids[1], mine.Items[0].ID)

	_, err = e.items.Mine(ctx, a, BrowseQuery{Status: "sold"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

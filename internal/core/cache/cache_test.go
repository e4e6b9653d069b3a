package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test:"), mr
}

type payload struct {
	N int `json:"n"`
}

func TestGetOrLoadJSONCachesValue(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		return payload{N: 7}, nil
	}

	v, err := GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v.N)
	v, err = GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v.N)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("test:k"))

	require.NoError(t, c.Invalidate(ctx, "k"))
	_, err = GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrLoadErrorNotCached(t *testing.T) {
	c, mr := newCache(t)
	boom := errors.New("boom")
	_, err := GetOrLoadJSON(c, context.Background(), "bad", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:bad"))
}

func TestGetOrLoadJSONReplacesCorruptEntry(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("test:k", "{not json"))
	v, err := GetOrLoadJSON(c, context.Background(), "k", time.Minute, func(context.Context) (payload, error) {
		return payload{N: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v.N)
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, got)
}

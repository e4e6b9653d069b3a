package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoadJSON 在 GetOrLoad 上做 JSON 编解码；缓存里的旧格式数据解不开时删掉重新回源
func GetOrLoadJSON[T any](c *Cache, ctx context.Context, key string, ttl time.Duration,
	load func(context.Context) (T, error)) (T, error) {
	fetch := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
	var out T
	raw, err := c.GetOrLoad(ctx, key, ttl, fetch)
	if err != nil {
		return out, err
	}
	if json.Unmarshal(raw, &out) == nil {
		return out, nil
	}
	if err := c.Invalidate(ctx, key); err != nil {
		return out, err
	}
	if raw, err = c.GetOrLoad(ctx, key, ttl, fetch); err != nil {
		return out, err
	}
	out = *new(T)
	err = json.Unmarshal(raw, &out)
	return out, err
}

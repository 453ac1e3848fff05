package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.ContentCache = (*ContentCache)(nil)

const homepageKey = "content:homepage"

// ContentCache stores the homepage payload with its fetch time. Freshness is decided
// by the reader; the Redis expiry only bounds how long a stale copy is kept around.
type ContentCache struct {
	client    RedisClient
	retention time.Duration
}

func NewContentCache(client RedisClient, retention time.Duration) *ContentCache {
	return &ContentCache{client: client, retention: retention}
}

func (c *ContentCache) GetHomepage(ctx context.Context) (*model.HomepageContent, error) {
	data, err := c.client.Get(ctx, homepageKey)
	if err != nil {
		return nil, err
	}
	var hc model.HomepageContent
	if err := json.Unmarshal([]byte(data), &hc); err != nil {
		return nil, fmt.Errorf("decode cached homepage: %w", err)
	}
	return &hc, nil
}

func (c *ContentCache) SetHomepage(ctx context.Context, content *model.HomepageContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, homepageKey, data, c.retention)
}

func (c *ContentCache) InvalidateHomepage(ctx context.Context) error {
	return c.client.Del(ctx, homepageKey)
}

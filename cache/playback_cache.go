package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const playbackURLKey = "minisite:playback:%s" // String: 预签名播放地址

// PlaybackCache 播放地址缓存
type PlaybackCache struct {
	client *redis.Client
}

// NewPlaybackCache 创建播放地址缓存
func NewPlaybackCache(client *redis.Client) *PlaybackCache {
	return &PlaybackCache{client: client}
}

// Get 获取缓存的播放地址，未命中时返回空字符串
func (c *PlaybackCache) Get(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", errNoClient()
	}

	url, err := c.client.Get(ctx, fmt.Sprintf(playbackURLKey, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return url, unavailable(err)
}

// Set 缓存播放地址
func (c *PlaybackCache) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	if c.client == nil {
		return errNoClient()
	}
	return unavailable(c.client.Set(ctx, fmt.Sprintf(playbackURLKey, key), url, ttl).Err())
}

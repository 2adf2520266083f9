package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"minisite/model"
	"minisite/storage"

	"github.com/go-redis/redis/v8"
)

const projectDraftKey = "minisite:project:%s:draft" // String: 项目草稿 JSON

// ProjectCache 项目草稿缓存，存放尚未 master-save 的编辑状态
type ProjectCache struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

// NewProjectCache 创建项目草稿缓存
func NewProjectCache(client *redis.Client, ttl time.Duration) *ProjectCache {
	return &ProjectCache{client: client, ttl: ttl, clock: time.Now}
}

// Get 获取草稿，不存在时返回 nil, nil
func (c *ProjectCache) Get(ctx context.Context, projectID string) (*model.Project, error) {
	if c.client == nil {
		return nil, errNoClient()
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(projectDraftKey, projectID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, storage.ErrUnavailable.Wrap(err)
	}

	var doc model.Project
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &doc, nil
}

// Put 保存草稿并刷新过期时间，同时更新 updatedAt
func (c *ProjectCache) Put(ctx context.Context, projectID string, doc *model.Project) error {
	if c.client == nil {
		return errNoClient()
	}

	draft := *doc
	draft.ProjectID = projectID
	draft.UpdatedAt = model.FormatTime(c.clock())

	data, err := json.Marshal(&draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	return unavailable(c.client.Set(ctx, fmt.Sprintf(projectDraftKey, projectID), data, c.ttl).Err())
}

// Delete 删除草稿
func (c *ProjectCache) Delete(ctx context.Context, projectID string) error {
	if c.client == nil {
		return errNoClient()
	}
	return unavailable(c.client.Del(ctx, fmt.Sprintf(projectDraftKey, projectID)).Err())
}

// errNoClient 未初始化 Redis 与 Redis 不可达同样处理
func errNoClient() error {
	return storage.ErrUnavailable.New("Redis client not initialized")
}

// unavailable 将 Redis 错误归类为存储不可用，nil 原样返回
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return storage.ErrUnavailable.Wrap(err)
}

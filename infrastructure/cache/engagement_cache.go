package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/configuration"
	"autopost/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autopost:engagement:"

// NewRedisClient returns nil when no host is configured.
func NewRedisClient(cfg configuration.RedisClient) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

// EngagementCache caches fetched engagement in Redis. A nil client turns
// every call into a miss.
type EngagementCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ repository.IEngagementCache = (*EngagementCache)(nil)

func NewEngagementCache(client *redis.Client, ttl time.Duration) *EngagementCache {
	return &EngagementCache{client: client, ttl: ttl}
}

func cacheKey(postID string) string {
	return keyPrefix + postID
}

func (c *EngagementCache) GetEngagement(ctx context.Context, postID string) (*model.Engagement, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(postID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.GetLogger().WithField("post_id", postID).WithError(err).Warn("engagement cache read failed")
		}
		return nil, false
	}
	var eng model.Engagement
	if err := json.Unmarshal(raw, &eng); err != nil {
		logger.GetLogger().WithField("post_id", postID).WithError(err).Warn("engagement cache entry corrupt")
		return nil, false
	}
	return &eng, true
}

func (c *EngagementCache) SetEngagement(ctx context.Context, postID string, eng model.Engagement) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(eng)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(postID), raw, c.ttl).Err(); err != nil {
		logger.GetLogger().WithField("post_id", postID).WithError(err).Warn("engagement cache write failed")
	}
}

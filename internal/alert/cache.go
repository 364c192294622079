package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UnreadCache keeps per-account unread counters in Redis so the 1-second
// console poll does not hit the database for every connected client. It is
// strictly an accelerator: any Redis failure reads as a miss and writes are
// best-effort.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewUnreadCache creates the cache around an existing Redis client.
func NewUnreadCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *UnreadCache {
	return &UnreadCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func unreadKey(accountID uint) string {
	return fmt.Sprintf("alerts:unread:%d", accountID)
}

// Get returns the cached unread count and whether it was present.
func (c *UnreadCache) Get(ctx context.Context, accountID uint) (int64, bool) {
	count, err := c.client.Get(ctx, unreadKey(accountID)).Int64()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.logger.Warn("unread cache read failed",
			zap.Uint("account_id", accountID),
			zap.Error(err))
		return 0, false
	}
	return count, true
}

// Set stores the unread count with the configured TTL.
func (c *UnreadCache) Set(ctx context.Context, accountID uint, count int64) {
	if err := c.client.Set(ctx, unreadKey(accountID), count, c.ttl).Err(); err != nil {
		c.logger.Warn("unread cache write failed",
			zap.Uint("account_id", accountID),
			zap.Error(err))
	}
}

// Invalidate drops the cached count after any write that changes it.
func (c *UnreadCache) Invalidate(ctx context.Context, accountID uint) {
	if err := c.client.Del(ctx, unreadKey(accountID)).Err(); err != nil {
		c.logger.Warn("unread cache invalidation failed",
			zap.Uint("account_id", accountID),
			zap.Error(err))
	}
}

// Package cache is a Redis read-through cache for authority point lookups.
// It only serves the public read API; registry mutations invalidate, and the
// verification path always reads the store directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func New(client *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

func key(identity domain.Identity) string {
	return "authority:" + string(identity)
}

// Get returns the cached authority or nil on miss. Redis failures degrade to
// a miss.
func (c *Cache) Get(ctx context.Context, identity domain.Identity) *models.Authority {
	if c == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, key(identity)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "authority cache read failed", "error", err)
		}
		return nil
	}

	var authority models.Authority
	if err := json.Unmarshal(raw, &authority); err != nil {
		c.log.WarnContext(ctx, "authority cache entry corrupt", "identity", identity, "error", err)
		return nil
	}
	return &authority
}

// Set stores the authority snapshot. Failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, authority *models.Authority) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(authority)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(authority.Identity), raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "authority cache write failed", "error", err)
	}
}

// Invalidate drops the cached entry after a mutation.
func (c *Cache) Invalidate(ctx context.Context, identity domain.Identity) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key(identity)).Err(); err != nil {
		c.log.WarnContext(ctx, "authority cache invalidation failed", "error", err)
	}
}
